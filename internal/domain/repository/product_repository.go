package repository

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// GetByID/GetForUpdate devuelven (nil, nil) si el producto no existe.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate obtiene el producto y bloquea la fila hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	// GetManyForUpdate bloquea varias filas en orden ascendente de ID (evita deadlocks entre ventas).
	// Los IDs inexistentes simplemente no aparecen en el resultado.
	GetManyForUpdate(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	// Update actualiza campos editables y status. No toca Stock.
	Update(ctx context.Context, product *entity.Product) error
	// UpdateStock fija el stock de un producto cuya fila ya está bloqueada por la transacción.
	UpdateStock(ctx context.Context, id string, stock int) error

	// ListLowStock productos activos con stock < min_stock, ascendente por stock.
	ListLowStock(ctx context.Context) ([]*entity.Product, error)
	CountActive(ctx context.Context) (int, error)
}
