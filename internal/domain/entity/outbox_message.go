package entity

import "time"

// Estados de un mensaje del outbox transaccional.
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// Tipos de evento publicados para ventas.
const (
	EventSaleCreated   = "sale.created"
	EventSaleCompleted = "sale.completed"
	EventSaleFailed    = "sale.failed"
	EventSaleRefunded  = "sale.refunded"
)

// AggregateSale tipo de agregado para eventos de venta.
const AggregateSale = "sale"

// OutboxMessage evento pendiente de publicar, escrito en la misma transacción que el cambio que describe.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        string
	AttemptCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
