package repository

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
)

// InventoryLogRepository puerto del log de inventario. Solo inserción y lectura: nunca se edita ni borra.
type InventoryLogRepository interface {
	Append(ctx context.Context, entry *entity.InventoryLogEntry) error
	// ListByProduct devuelve el historial del producto, más reciente primero.
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.InventoryLogEntry, error)
	// SumDeltasByProduct suma los deltas con signo (new_stock - previous_stock) de todo el historial.
	SumDeltasByProduct(ctx context.Context, productID string) (int, error)
}
