package repository

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// SaleRepository define el puerto de persistencia para Sale y sus ítems.
// GetByID/GetForUpdate devuelven (nil, nil) si la venta no existe.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	CreateItem(ctx context.Context, item *entity.SaleItem) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// GetForUpdate bloquea la fila de la venta (transiciones de estado).
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
	// ListItems ítems de la venta en orden de carrito.
	ListItems(ctx context.Context, saleID string) ([]*entity.SaleItem, error)
	// UpdateStatus actualiza status, transaction_ref y updated_at.
	UpdateStatus(ctx context.Context, sale *entity.Sale) error

	// ListRecent últimas ventas (sin ítems), más reciente primero.
	ListRecent(ctx context.Context, limit int) ([]*entity.Sale, error)
	// SumTotalByStatus suma de totales de las ventas en el estado dado (cero si no hay).
	SumTotalByStatus(ctx context.Context, status string) (decimal.Decimal, error)
}
