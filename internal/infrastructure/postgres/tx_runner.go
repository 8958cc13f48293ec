package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

// DefaultLockTimeout espera máxima por un bloqueo de fila antes de devolver ErrBusy.
const DefaultLockTimeout = 2 * time.Second

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner construye el runner con el pool. lockTimeout <= 0 usa DefaultLockTimeout.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los errores que devuelve fn salen sin cambios; los del driver se clasifican en ErrBusy o ErrPersistence.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.TxRepos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// set_config(..., true) equivale a SET LOCAL: dura lo que la transacción.
	timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		return classify("set lock_timeout", err)
	}

	if err := fn(txRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// Repos devuelve repositorios sobre el pool (autocommit), para lecturas y el outbox worker.
func Repos(pool *pgxpool.Pool) repository.TxRepos {
	return txRepos(pool)
}

func txRepos(q Querier) repository.TxRepos {
	return repository.TxRepos{
		Products:     NewProductRepository(q),
		InventoryLog: NewInventoryLogRepository(q),
		Sales:        NewSaleRepository(q),
		Outbox:       NewOutboxRepository(q),
	}
}
