package entity

import "github.com/shopspring/decimal"

// SaleItem línea de una venta con snapshot de nombre y precio al momento de la venta.
type SaleItem struct {
	ID          string
	SaleID      string
	ProductID   string
	ProductName string // snapshot, inmune a renombres posteriores
	Quantity    int
	UnitPrice   decimal.Decimal // snapshot del precio de catálogo
	Subtotal    decimal.Decimal // Quantity * UnitPrice
	Position    int             // orden de la línea en el carrito
}
