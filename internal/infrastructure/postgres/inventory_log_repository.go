package postgres

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

var _ repository.InventoryLogRepository = (*InventoryLogRepo)(nil)

// InventoryLogRepo historial append-only de movimientos de stock.
type InventoryLogRepo struct {
	q Querier
}

// NewInventoryLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryLogRepository(q Querier) *InventoryLogRepo {
	return &InventoryLogRepo{q: q}
}

// Append inserta una entrada. No existe UPDATE ni DELETE sobre esta tabla.
func (r *InventoryLogRepo) Append(ctx context.Context, e *entity.InventoryLogEntry) error {
	query := `
		INSERT INTO inventory_log (id, product_id, type, quantity, previous_stock, new_stock, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.ProductID, e.Type, e.Quantity, e.PreviousStock, e.NewStock, e.Notes, e.CreatedBy, e.CreatedAt,
	)
	return classify("append inventory log", err)
}

// ListByProduct más reciente primero. seq desempata entradas con el mismo created_at.
func (r *InventoryLogRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.InventoryLogEntry, error) {
	query := `
		SELECT id, product_id, type, quantity, previous_stock, new_stock, notes, created_by, created_at
		FROM inventory_log
		WHERE product_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, classify("list inventory log", err)
	}
	defer rows.Close()
	var list []*entity.InventoryLogEntry
	for rows.Next() {
		var e entity.InventoryLogEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Type, &e.Quantity, &e.PreviousStock,
			&e.NewStock, &e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, classify("scan inventory log", err)
		}
		list = append(list, &e)
	}
	return list, classify("list inventory log", rows.Err())
}

// SumDeltasByProduct Σ (new_stock - previous_stock) del producto; 0 sin historial.
func (r *InventoryLogRepo) SumDeltasByProduct(ctx context.Context, productID string) (int, error) {
	var sum int
	query := `SELECT COALESCE(SUM(new_stock - previous_stock), 0)::int FROM inventory_log WHERE product_id = $1`
	if err := r.q.QueryRow(ctx, query, productID).Scan(&sum); err != nil {
		return 0, classify("sum inventory log", err)
	}
	return sum, nil
}
