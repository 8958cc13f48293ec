package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de pago/ciclo de vida de una venta.
const (
	SaleStatusPending   = "pending"   // creada, esperando confirmación del pago
	SaleStatusCompleted = "completed" // pago confirmado
	SaleStatusFailed    = "failed"    // pago rechazado; las unidades vuelven al stock
	SaleStatusRefunded  = "refunded"  // reembolsada; las unidades vuelven al stock
)

// Sale representa la cabecera de una venta.
// Invariante: Total == Σ Items[i].Subtotal. Los ítems no cambian después de creada.
type Sale struct {
	ID             string
	BuyerID        string
	Total          decimal.Decimal
	PaymentMethod  string
	Status         string
	TransactionRef string // referencia externa del pago (opcional)
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []*SaleItem
}

// ItemsTotal suma los subtotales de los ítems.
func (s *Sale) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}
