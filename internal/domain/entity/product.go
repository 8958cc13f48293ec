package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de un producto. Nunca se borra físicamente: pasa a inactive.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// DefaultMinStock umbral de reorden por defecto cuando el admin no lo indica.
const DefaultMinStock = 10

// Product representa un producto del catálogo.
// Stock solo se modifica vía el Product Ledger (dentro de una transacción con su registro en inventory_log).
type Product struct {
	ID          string
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal // precio de venta unitario, >= 0
	Stock       int             // unidades disponibles, >= 0
	MinStock    int             // umbral de reorden (alerta de stock bajo)
	Status      string          // active | inactive
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive indica si el producto se puede vender o ajustar.
func (p *Product) IsActive() bool {
	return p != nil && p.Status == ProductStatusActive
}

// IsLowStock indica si el stock actual está por debajo del umbral de reorden.
func (p *Product) IsLowStock() bool {
	return p.Stock < p.MinStock
}
