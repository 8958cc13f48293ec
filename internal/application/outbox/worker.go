// Package outbox publica los eventos del outbox transaccional hacia el broker.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
	"github.com/jhoicas/agromarket-api/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultLockTTL        = 30 * time.Second

	lockKey = "lock:outbox-publisher"
)

// ErrLockNotObtained otra réplica tiene el bloqueo; el ciclo se omite.
var ErrLockNotObtained = errors.New("outbox: bloqueo no obtenido")

// Publisher envía un mensaje del outbox al broker.
type Publisher interface {
	Publish(ctx context.Context, msg *entity.OutboxMessage) error
}

// Locker bloqueo distribuido para que una sola réplica publique por ciclo.
// Devuelve ErrLockNotObtained si el bloqueo está tomado.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Option configura el Worker.
type Option func(*Worker)

func WithPollInterval(d time.Duration) Option { return func(w *Worker) { w.pollInterval = d } }
func WithBatchSize(n int) Option              { return func(w *Worker) { w.batchSize = n } }
func WithMaxAttempts(n int) Option            { return func(w *Worker) { w.maxAttempts = n } }

// WithRetryBaseDelay base del backoff exponencial entre intentos de un mismo ciclo (0 = sin espera).
func WithRetryBaseDelay(d time.Duration) Option { return func(w *Worker) { w.retryBaseDelay = d } }

func WithLogger(l zerolog.Logger) Option { return func(w *Worker) { w.logger = l } }

// WithLocker activa el bloqueo distribuido por ciclo.
func WithLocker(l Locker) Option { return func(w *Worker) { w.locker = l } }

func WithMetrics(m *metrics.SalesMetrics) Option { return func(w *Worker) { w.metrics = m } }

// Worker sondea el outbox y publica los mensajes pending, más antiguos primero.
type Worker struct {
	repo      repository.OutboxRepository
	publisher Publisher
	locker    Locker
	metrics   *metrics.SalesMetrics
	logger    zerolog.Logger

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker crea el worker. Valores <= 0 en las opciones usan los defaults.
func NewWorker(repo repository.OutboxRepository, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         zerolog.Nop(),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	return w
}

// Run sondea hasta que ctx se cancele.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn().Msg("outbox worker deshabilitado: repo o publisher nil")
		return
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce ejecuta un ciclo. Devuelve cuántos mensajes se publicaron.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	if w.locker != nil {
		release, err := w.locker.Obtain(ctx, lockKey, defaultLockTTL)
		if errors.Is(err, ErrLockNotObtained) {
			w.logger.Debug().Msg("outbox: otra réplica publica este ciclo")
			return 0
		}
		if err != nil {
			w.logger.Warn().Err(err).Msg("outbox: error obteniendo bloqueo")
			return 0
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn().Err(err).Msg("outbox: error liberando bloqueo")
			}
		}()
	}

	msgs, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Warn().Err(err).Msg("outbox: error leyendo pendientes")
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return sent
		}
		if err := w.publishWithRetry(ctx, msg); err != nil {
			w.logger.Error().Err(err).
				Str("outbox_id", msg.ID).
				Str("event_type", msg.EventType).
				Str("sale_id", msg.AggregateID).
				Msg("outbox: publicación fallida tras reintentos")
			w.metrics.RecordOutboxFailed()
			if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
				w.logger.Warn().Err(err).Str("outbox_id", msg.ID).Msg("outbox: no se pudo marcar failed")
			}
			continue
		}
		if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
			w.logger.Warn().Err(err).Str("outbox_id", msg.ID).Msg("outbox: no se pudo marcar sent")
			continue
		}
		w.metrics.RecordOutboxSent()
		sent++
	}
	return sent
}

func (w *Worker) publishWithRetry(ctx context.Context, msg *entity.OutboxMessage) error {
	var lastErr error
	delay := w.retryBaseDelay
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.publisher.Publish(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		w.metrics.RecordOutboxPublishError()
		if attempt == w.maxAttempts || delay == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("publicación fallida tras %d intentos: %w", w.maxAttempts, lastErr)
}
