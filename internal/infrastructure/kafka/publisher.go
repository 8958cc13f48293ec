// Package kafka publica los eventos del outbox en Kafka (IBM/sarama).
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/jhoicas/agromarket-api/internal/application/outbox"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/rs/zerolog"
)

// DefaultTopic tópico de eventos de venta si la configuración no indica otro.
const DefaultTopic = "agromarket.sales"

// Envelope formato publicado: el payload del outbox va tal cual dentro de payload.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// Publisher envía mensajes del outbox con un SyncProducer. Clave = id de la venta.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

var _ outbox.Publisher = (*Publisher)(nil)

// NewSyncProducer crea el productor con acks de todas las réplicas e idempotencia.
func NewSyncProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: sin brokers configurados")
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: crear productor: %w", err)
	}
	return producer, nil
}

// NewPublisher envuelve un SyncProducer. topic vacío usa DefaultTopic.
func NewPublisher(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish envía el mensaje; el ctx solo se consulta antes del envío (SendMessage es bloqueante).
func (p *Publisher) Publish(ctx context.Context, msg *entity.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka: publisher no inicializado")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	value, err := json.Marshal(Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("kafka: serializar envelope: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(msg.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: enviar %s: %w", msg.ID, err)
	}
	p.logger.Debug().
		Str("topic", p.topic).
		Str("key", key).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("evento publicado")
	return nil
}

// Close cierra el productor.
func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("kafka: cerrar productor: %w", err)
	}
	return nil
}
