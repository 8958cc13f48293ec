package dto

import "time"

// AdjustStockRequest body para PATCH /api/products/:id/stock.
// Delta con signo; el tipo fija el signo permitido (adjustment admite ambos).
type AdjustStockRequest struct {
	Delta int    `json:"delta" validate:"required,ne=0"`
	Type  string `json:"type" validate:"required,oneof=restock adjustment return"`
	Note  string `json:"note" validate:"max=500"`
}

// StockChangeResponse resultado de un ajuste de stock.
type StockChangeResponse struct {
	ProductID     string `json:"product_id"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
}

// InventoryLogEntryResponse una entrada del historial de inventario.
type InventoryLogEntryResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Type          string    `json:"type"`
	Quantity      int       `json:"quantity"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// InventoryLogListResponse historial paginado, más reciente primero.
type InventoryLogListResponse struct {
	Items []InventoryLogEntryResponse `json:"items"`
	Page  PageResponse                `json:"page"`
}

// StockReconciliationDTO compara el stock actual con la suma de deltas del historial.
type StockReconciliationDTO struct {
	ProductID    string `json:"product_id"`
	CurrentStock int    `json:"current_stock"`
	LoggedStock  int    `json:"logged_stock"` // Σ (new_stock - previous_stock)
	Difference   int    `json:"difference"`   // current_stock - logged_stock
	Consistent   bool   `json:"consistent"`
}
