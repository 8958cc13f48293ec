package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.SaleRepository = (*saleRepo)(nil)

type saleRepo struct {
	s  *Store
	tx *memTx
}

// cloneSale copia la cabecera; Items no se persiste con la venta.
func cloneSale(sale *entity.Sale) *entity.Sale {
	if sale == nil {
		return nil
	}
	cp := *sale
	cp.Items = nil
	return &cp
}

func (r *saleRepo) Create(ctx context.Context, sale *entity.Sale) error {
	if sale.ID == "" {
		sale.ID = newID()
	}
	return r.s.write(ctx, r.tx, "sale.create", func(tx *memTx) error {
		if sale.Total.IsNegative() {
			return fmt.Errorf("%w: create sale: check constraint", domain.ErrPersistence)
		}
		if _, ok := r.s.sale(tx, sale.ID); ok {
			return domain.ErrDuplicate
		}
		if err := tx.lock(ctx, saleKey(sale.ID)); err != nil {
			return err
		}
		tx.sales[sale.ID] = cloneSale(sale)
		tx.newSales = append(tx.newSales, sale.ID)
		return nil
	})
}

func (r *saleRepo) CreateItem(ctx context.Context, item *entity.SaleItem) error {
	if item.ID == "" {
		item.ID = newID()
	}
	return r.s.write(ctx, r.tx, "sale_item.create", func(tx *memTx) error {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: create sale item: check constraint", domain.ErrPersistence)
		}
		if _, ok := r.s.sale(tx, item.SaleID); !ok {
			return fmt.Errorf("%w: create sale item: foreign key sale_id", domain.ErrPersistence)
		}
		cp := *item
		tx.items = append(tx.items, &cp)
		return nil
	})
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	sale, ok := r.s.sale(r.tx, id)
	if !ok {
		return nil, nil
	}
	return cloneSale(sale), nil
}

func (r *saleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	if r.tx == nil {
		return r.GetByID(ctx, id)
	}
	if _, ok := r.s.sale(r.tx, id); !ok {
		return nil, nil
	}
	if err := r.tx.lock(ctx, saleKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *saleRepo) ListItems(_ context.Context, saleID string) ([]*entity.SaleItem, error) {
	items := r.s.saleItems(r.tx, saleID)
	out := make([]*entity.SaleItem, 0, len(items))
	for _, it := range items {
		cp := *it
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *saleRepo) UpdateStatus(ctx context.Context, sale *entity.Sale) error {
	return r.s.write(ctx, r.tx, "sale.update_status", func(tx *memTx) error {
		if err := tx.lock(ctx, saleKey(sale.ID)); err != nil {
			return err
		}
		current, ok := r.s.sale(tx, sale.ID)
		if !ok {
			return domain.ErrSaleNotFound
		}
		next := cloneSale(current)
		next.Status = sale.Status
		next.TransactionRef = sale.TransactionRef
		next.UpdatedAt = sale.UpdatedAt
		tx.sales[sale.ID] = next
		return nil
	})
}

func (r *saleRepo) ListRecent(_ context.Context, limit int) ([]*entity.Sale, error) {
	all := r.s.allSales(r.tx)
	out := make([]*entity.Sale, 0, limit)
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, cloneSale(all[i]))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *saleRepo) SumTotalByStatus(_ context.Context, status string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, sale := range r.s.allSales(r.tx) {
		if sale.Status == status {
			sum = sum.Add(sale.Total)
		}
	}
	return sum, nil
}
