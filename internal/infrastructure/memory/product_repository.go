package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*productRepo)(nil)

type productRepo struct {
	s  *Store
	tx *memTx
}

func cloneProduct(p *entity.Product) *entity.Product {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func (r *productRepo) Create(ctx context.Context, p *entity.Product) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return r.s.write(ctx, r.tx, "product.create", func(tx *memTx) error {
		if p.Stock < 0 || p.Price.IsNegative() {
			return fmt.Errorf("%w: create product: check constraint", domain.ErrPersistence)
		}
		if _, ok := r.s.product(tx, p.ID); ok {
			return domain.ErrDuplicate
		}
		if err := tx.lock(ctx, productKey(p.ID)); err != nil {
			return err
		}
		tx.products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	p, ok := r.s.product(r.tx, id)
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	if r.tx == nil {
		return r.GetByID(ctx, id)
	}
	if _, ok := r.s.product(r.tx, id); !ok {
		return nil, nil
	}
	if err := r.tx.lock(ctx, productKey(id)); err != nil {
		return nil, err
	}
	// Releer tras obtener el bloqueo: otra tx pudo confirmar cambios mientras esperábamos.
	return r.GetByID(ctx, id)
}

func (r *productRepo) GetManyForUpdate(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	sorted := uniqueSorted(ids)
	out := make(map[string]*entity.Product, len(sorted))
	for _, id := range sorted {
		p, err := r.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out[id] = p
		}
	}
	return out, nil
}

func (r *productRepo) Update(ctx context.Context, p *entity.Product) error {
	return r.s.write(ctx, r.tx, "product.update", func(tx *memTx) error {
		if err := tx.lock(ctx, productKey(p.ID)); err != nil {
			return err
		}
		current, ok := r.s.product(tx, p.ID)
		if !ok {
			return domain.NewProductNotFound(p.ID)
		}
		if p.Price.IsNegative() || p.MinStock < 0 {
			return fmt.Errorf("%w: update product: check constraint", domain.ErrPersistence)
		}
		next := cloneProduct(current)
		next.Name = p.Name
		next.Category = p.Category
		next.Description = p.Description
		next.Price = p.Price
		next.MinStock = p.MinStock
		next.Status = p.Status
		next.UpdatedAt = p.UpdatedAt
		tx.products[p.ID] = next
		return nil
	})
}

func (r *productRepo) UpdateStock(ctx context.Context, id string, stock int) error {
	return r.s.write(ctx, r.tx, "product.update_stock", func(tx *memTx) error {
		if stock < 0 {
			return fmt.Errorf("%w: update stock: check constraint stock >= 0", domain.ErrPersistence)
		}
		if err := tx.lock(ctx, productKey(id)); err != nil {
			return err
		}
		current, ok := r.s.product(tx, id)
		if !ok {
			return domain.NewProductNotFound(id)
		}
		next := cloneProduct(current)
		next.Stock = stock
		next.UpdatedAt = time.Now().UTC()
		tx.products[id] = next
		return nil
	})
}

func (r *productRepo) ListLowStock(_ context.Context) ([]*entity.Product, error) {
	var out []*entity.Product
	for _, p := range r.s.allProducts(r.tx) {
		if p.IsActive() && p.IsLowStock() {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *productRepo) CountActive(_ context.Context) (int, error) {
	n := 0
	for _, p := range r.s.allProducts(r.tx) {
		if p.IsActive() {
			n++
		}
	}
	return n, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
