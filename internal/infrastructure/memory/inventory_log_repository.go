package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

var _ repository.InventoryLogRepository = (*inventoryLogRepo)(nil)

type inventoryLogRepo struct {
	s  *Store
	tx *memTx
}

func (r *inventoryLogRepo) Append(ctx context.Context, e *entity.InventoryLogEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return r.s.write(ctx, r.tx, "inventory_log.append", func(tx *memTx) error {
		if !entity.IsValidLogType(e.Type) || e.Quantity <= 0 || e.NewStock < 0 {
			return fmt.Errorf("%w: append inventory log: check constraint", domain.ErrPersistence)
		}
		cp := *e
		tx.logs = append(tx.logs, &cp)
		return nil
	})
}

func (r *inventoryLogRepo) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.InventoryLogEntry, error) {
	all := r.s.allLogs(r.tx)
	var out []*entity.InventoryLogEntry
	skipped := 0
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ProductID != productID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *all[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *inventoryLogRepo) SumDeltasByProduct(_ context.Context, productID string) (int, error) {
	sum := 0
	for _, e := range r.s.allLogs(r.tx) {
		if e.ProductID == productID {
			sum += e.Delta()
		}
	}
	return sum, nil
}
