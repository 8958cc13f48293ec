package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
)

func TestPublisher_PublicaEnvelope(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, DefaultTopic, msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "sale-1", string(key))

		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "out-1", env.ID)
		assert.Equal(t, entity.EventSaleCreated, env.EventType)
		assert.JSONEq(t, `{"sale_id":"sale-1"}`, string(env.Payload))
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, entity.EventSaleCreated, string(msg.Headers[0].Value))
		return nil
	})

	publisher := NewPublisher(mockProducer, "", zerolog.Nop())
	err := publisher.Publish(context.Background(), &entity.OutboxMessage{
		ID:            "out-1",
		AggregateType: entity.AggregateSale,
		AggregateID:   "sale-1",
		EventType:     entity.EventSaleCreated,
		Payload:       []byte(`{"sale_id":"sale-1"}`),
	})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestPublisher_ErrorDelBroker(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewPublisher(mockProducer, "ventas", zerolog.Nop())
	err := publisher.Publish(context.Background(), &entity.OutboxMessage{ID: "out-2", AggregateID: "sale-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mockProducer.Close())
}

func TestPublisher_ContextoCanceladoNoEnvia(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	publisher := NewPublisher(mockProducer, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := publisher.Publish(ctx, &entity.OutboxMessage{ID: "out-3"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mockProducer.Close())
}

func TestNewSyncProducer_SinBrokers(t *testing.T) {
	_, err := NewSyncProducer(nil, "agromarket-api")
	assert.Error(t, err)
}
