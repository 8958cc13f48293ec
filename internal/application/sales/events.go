package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// SaleEvent payload de los eventos sale.* publicados vía outbox.
type SaleEvent struct {
	SaleID         string          `json:"sale_id"`
	BuyerID        string          `json:"buyer_id"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	Items          []SaleEventItem `json:"items"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// SaleEventItem línea de la venta dentro del evento.
type SaleEventItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// newSaleMessage arma el mensaje de outbox para la venta en su estado actual.
func newSaleMessage(eventType string, sale *entity.Sale, now time.Time) (*entity.OutboxMessage, error) {
	ev := SaleEvent{
		SaleID:         sale.ID,
		BuyerID:        sale.BuyerID,
		Status:         sale.Status,
		Total:          sale.Total,
		PaymentMethod:  sale.PaymentMethod,
		TransactionRef: sale.TransactionRef,
		Items:          make([]SaleEventItem, 0, len(sale.Items)),
		OccurredAt:     now,
	}
	for _, it := range sale.Items {
		ev.Items = append(ev.Items, SaleEventItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("evento %s: %w", eventType, err)
	}
	return &entity.OutboxMessage{
		ID:            uuid.New().String(),
		AggregateType: entity.AggregateSale,
		AggregateID:   sale.ID,
		EventType:     eventType,
		Payload:       payload,
		Status:        entity.OutboxStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
