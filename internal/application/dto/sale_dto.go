package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleItemRequest línea del carrito.
type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// CreateSaleRequest body para POST /api/sales. El comprador es el usuario del token.
type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required,max=50"`
}

// ConfirmPaymentRequest body para POST /api/sales/:id/payment.
type ConfirmPaymentRequest struct {
	Outcome        string `json:"outcome" validate:"required,oneof=completed failed"`
	TransactionRef string `json:"transaction_ref" validate:"max=100"`
}

// SaleItemResponse línea de venta con snapshots de nombre y precio.
type SaleItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleResponse salida de una venta con sus ítems en orden de carrito.
type SaleResponse struct {
	ID             string             `json:"id"`
	BuyerID        string             `json:"buyer_id"`
	Total          decimal.Decimal    `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	Status         string             `json:"status"`
	TransactionRef string             `json:"transaction_ref,omitempty"`
	Items          []SaleItemResponse `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// SaleSummaryDTO venta sin ítems (dashboard).
type SaleSummaryDTO struct {
	ID        string          `json:"id"`
	BuyerID   string          `json:"buyer_id"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
