package entity

import "time"

// Tipos de movimiento del log de inventario.
const (
	LogTypeSale       = "sale"       // salida por venta (negativo)
	LogTypeRestock    = "restock"    // reposición (positivo)
	LogTypeAdjustment = "adjustment" // ajuste manual (cualquier signo)
	LogTypeReturn     = "return"     // devolución de unidades al stock (positivo)
	LogTypeRefund     = "refund"     // reembolso de una venta completada (positivo)
	LogTypeInitial    = "initial"    // stock inicial al crear el producto (positivo)
)

// InventoryLogEntry registro append-only de una mutación de stock.
// Invariante: NewStock - PreviousStock == ±Quantity, con el signo fijado por Type.
type InventoryLogEntry struct {
	ID            string
	ProductID     string
	Type          string
	Quantity      int // magnitud del cambio, siempre > 0
	PreviousStock int
	NewStock      int
	Notes         string
	CreatedBy     string // actor (opcional)
	CreatedAt     time.Time
}

// Delta devuelve el cambio con signo aplicado al stock.
func (e *InventoryLogEntry) Delta() int {
	return e.NewStock - e.PreviousStock
}

// IsValidLogType indica si el tipo de movimiento es conocido.
func IsValidLogType(t string) bool {
	switch t {
	case LogTypeSale, LogTypeRestock, LogTypeAdjustment, LogTypeReturn, LogTypeRefund, LogTypeInitial:
		return true
	}
	return false
}

// DeltaMatchesType valida que el signo del delta sea coherente con el tipo.
// sale solo resta; restock, return, refund e initial solo suman; adjustment admite ambos.
func DeltaMatchesType(t string, delta int) bool {
	if delta == 0 {
		return false
	}
	switch t {
	case LogTypeSale:
		return delta < 0
	case LogTypeRestock, LogTypeReturn, LogTypeRefund, LogTypeInitial:
		return delta > 0
	case LogTypeAdjustment:
		return true
	}
	return false
}
