// Package memory implementa los repositorios en memoria con semántica transaccional:
// escrituras bufferizadas por transacción, bloqueo de fila con espera acotada y
// Commit/Rollback todo o nada. Se usa en tests y en modo demo sin PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/agromarket-api/internal/application/inventory"
	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

// DefaultLockTimeout espera máxima por un bloqueo de fila antes de devolver ErrBusy.
const DefaultLockTimeout = 2 * time.Second

// FaultFunc se invoca antes de cada operación de escritura y antes del commit.
// Si devuelve error la operación falla con ErrPersistence (o ErrBusy si el error ya lo es).
type FaultFunc func(op string) error

// Option configura el Store.
type Option func(*Store)

// WithLockTimeout cambia la espera máxima por bloqueo de fila.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// Store almacén en memoria. Implementa inventory.TxRunner.
type Store struct {
	mu sync.RWMutex

	products    map[string]*entity.Product
	logs        []*entity.InventoryLogEntry
	sales       map[string]*entity.Sale
	saleOrder   []string
	items       map[string][]*entity.SaleItem
	outbox      map[string]*entity.OutboxMessage
	outboxOrder []string

	rowLocks    map[string]chan struct{}
	lockTimeout time.Duration

	faultMu sync.RWMutex
	fault   FaultFunc
}

// New crea un Store vacío.
func New(opts ...Option) *Store {
	s := &Store{
		products:    make(map[string]*entity.Product),
		sales:       make(map[string]*entity.Sale),
		items:       make(map[string][]*entity.SaleItem),
		outbox:      make(map[string]*entity.OutboxMessage),
		rowLocks:    make(map[string]chan struct{}),
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFault instala (o quita, con nil) la función de inyección de fallos.
func (s *Store) SetFault(f FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = f
}

// FailOn devuelve una FaultFunc que falla solo en la operación indicada.
func FailOn(op string) FaultFunc {
	return func(current string) error {
		if current == op {
			return fmt.Errorf("fallo inyectado en %s", op)
		}
		return nil
	}
}

func (s *Store) inject(op string) error {
	s.faultMu.RLock()
	f := s.fault
	s.faultMu.RUnlock()
	if f == nil {
		return nil
	}
	err := f(op)
	if err == nil {
		return nil
	}
	if domain.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

// ── Repositorios fuera de transacción (autocommit por operación) ──

func (s *Store) Products() repository.ProductRepository          { return &productRepo{s: s} }
func (s *Store) InventoryLog() repository.InventoryLogRepository { return &inventoryLogRepo{s: s} }
func (s *Store) Sales() repository.SaleRepository                { return &saleRepo{s: s} }
func (s *Store) Outbox() repository.OutboxRepository             { return &outboxRepo{s: s} }

// Run ejecuta fn en una transacción; Rollback si fn falla, Commit si no.
func (s *Store) Run(ctx context.Context, fn func(repos repository.TxRepos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrPersistence, err)
	}
	tx := s.begin()
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	if err = fn(tx.repos()); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) write(ctx context.Context, tx *memTx, op string, fn func(tx *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
	}
	if err := s.inject(op); err != nil {
		return err
	}
	if tx != nil {
		return fn(tx)
	}
	tx = s.begin()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}

// ── Bloqueos de fila ──

func productKey(id string) string { return "product:" + id }
func saleKey(id string) string    { return "sale:" + id }

func (s *Store) lockFor(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[key] = ch
	}
	return ch
}

// ── Transacción ──

type memTx struct {
	s    *Store
	held map[string]chan struct{}
	done bool

	products  map[string]*entity.Product
	logs      []*entity.InventoryLogEntry
	sales     map[string]*entity.Sale
	newSales  []string
	items     []*entity.SaleItem
	outbox    map[string]*entity.OutboxMessage
	newOutbox []string
}

func (s *Store) begin() *memTx {
	return &memTx{
		s:        s,
		held:     make(map[string]chan struct{}),
		products: make(map[string]*entity.Product),
		sales:    make(map[string]*entity.Sale),
		outbox:   make(map[string]*entity.OutboxMessage),
	}
}

func (tx *memTx) repos() repository.TxRepos {
	return repository.TxRepos{
		Products:     &productRepo{s: tx.s, tx: tx},
		InventoryLog: &inventoryLogRepo{s: tx.s, tx: tx},
		Sales:        &saleRepo{s: tx.s, tx: tx},
		Outbox:       &outboxRepo{s: tx.s, tx: tx},
	}
}

// lock toma el bloqueo de la fila; reentrante dentro de la misma transacción.
func (tx *memTx) lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	ch := tx.s.lockFor(key)
	timer := time.NewTimer(tx.s.lockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		tx.held[key] = ch
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s", domain.ErrBusy, key)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, key, ctx.Err())
	}
}

func (tx *memTx) release() {
	for key, ch := range tx.held {
		<-ch
		delete(tx.held, key)
	}
	tx.done = true
}

func (tx *memTx) rollback() {
	if tx.done {
		return
	}
	tx.release()
}

func (tx *memTx) commit() error {
	if tx.done {
		return fmt.Errorf("%w: commit transaction: transacción cerrada", domain.ErrPersistence)
	}
	defer tx.release()
	if err := tx.s.inject("commit"); err != nil {
		return err
	}

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range tx.products {
		s.products[id] = p
	}
	s.logs = append(s.logs, tx.logs...)
	for _, id := range tx.newSales {
		s.saleOrder = append(s.saleOrder, id)
	}
	for id, sale := range tx.sales {
		s.sales[id] = sale
	}
	for _, it := range tx.items {
		s.items[it.SaleID] = append(s.items[it.SaleID], it)
	}
	for _, id := range tx.newOutbox {
		s.outboxOrder = append(s.outboxOrder, id)
	}
	for id, msg := range tx.outbox {
		s.outbox[id] = msg
	}
	return nil
}

// ── Lecturas combinadas (committed + buffer de la tx) ──

func (s *Store) product(tx *memTx, id string) (*entity.Product, bool) {
	if tx != nil {
		if p, ok := tx.products[id]; ok {
			return p, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) allProducts(tx *memTx) []*entity.Product {
	s.mu.RLock()
	merged := make(map[string]*entity.Product, len(s.products))
	for id, p := range s.products {
		merged[id] = p
	}
	s.mu.RUnlock()
	if tx != nil {
		for id, p := range tx.products {
			merged[id] = p
		}
	}
	out := make([]*entity.Product, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	return out
}

func (s *Store) allLogs(tx *memTx) []*entity.InventoryLogEntry {
	s.mu.RLock()
	out := make([]*entity.InventoryLogEntry, 0, len(s.logs))
	out = append(out, s.logs...)
	s.mu.RUnlock()
	if tx != nil {
		out = append(out, tx.logs...)
	}
	return out
}

func (s *Store) sale(tx *memTx, id string) (*entity.Sale, bool) {
	if tx != nil {
		if sale, ok := tx.sales[id]; ok {
			return sale, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	return sale, ok
}

// allSales ventas en orden de inserción.
func (s *Store) allSales(tx *memTx) []*entity.Sale {
	s.mu.RLock()
	out := make([]*entity.Sale, 0, len(s.saleOrder))
	for _, id := range s.saleOrder {
		sale := s.sales[id]
		if tx != nil {
			if staged, ok := tx.sales[id]; ok {
				sale = staged
			}
		}
		out = append(out, sale)
	}
	s.mu.RUnlock()
	if tx != nil {
		for _, id := range tx.newSales {
			out = append(out, tx.sales[id])
		}
	}
	return out
}

func (s *Store) saleItems(tx *memTx, saleID string) []*entity.SaleItem {
	s.mu.RLock()
	out := make([]*entity.SaleItem, 0, len(s.items[saleID]))
	out = append(out, s.items[saleID]...)
	s.mu.RUnlock()
	if tx != nil {
		for _, it := range tx.items {
			if it.SaleID == saleID {
				out = append(out, it)
			}
		}
	}
	return out
}

func (s *Store) outboxMessage(tx *memTx, id string) (*entity.OutboxMessage, bool) {
	if tx != nil {
		if msg, ok := tx.outbox[id]; ok {
			return msg, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.outbox[id]
	return msg, ok
}

// allOutbox mensajes en orden de inserción.
func (s *Store) allOutbox(tx *memTx) []*entity.OutboxMessage {
	s.mu.RLock()
	out := make([]*entity.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		msg := s.outbox[id]
		if tx != nil {
			if staged, ok := tx.outbox[id]; ok {
				msg = staged
			}
		}
		out = append(out, msg)
	}
	s.mu.RUnlock()
	if tx != nil {
		for _, id := range tx.newOutbox {
			out = append(out, tx.outbox[id])
		}
	}
	return out
}

// ── Helpers para tests y modo demo ──

// SeedProduct inserta un producto ya confirmado junto con su entrada "initial" si tiene stock.
func (s *Store) SeedProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	if p.Stock > 0 {
		s.logs = append(s.logs, &entity.InventoryLogEntry{
			ID:            newID(),
			ProductID:     p.ID,
			Type:          entity.LogTypeInitial,
			Quantity:      p.Stock,
			PreviousStock: 0,
			NewStock:      p.Stock,
			Notes:         "Stock inicial al crear producto",
			CreatedAt:     p.CreatedAt,
		})
	}
}

// AllOutbox copia de todos los mensajes del outbox en orden de inserción.
func (s *Store) AllOutbox() []entity.OutboxMessage {
	msgs := s.allOutbox(nil)
	out := make([]entity.OutboxMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}

func newID() string { return uuid.New().String() }

var _ inventory.TxRunner = (*Store)(nil)
