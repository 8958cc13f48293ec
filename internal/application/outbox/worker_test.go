package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agromarket-api/internal/application/outbox"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/infrastructure/memory"
)

type stubPublisher struct {
	mu     sync.Mutex
	errs   []error // error por llamada; después de agotarse, éxito
	always error
	ids    []string
}

func (p *stubPublisher) Publish(_ context.Context, msg *entity.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, msg.ID)
	if p.always != nil {
		return p.always
	}
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return err
	}
	return nil
}

func (p *stubPublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

type stubLocker struct {
	err      error
	released int
}

func (l *stubLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error { l.released++; return nil }, nil
}

// exclusiveLocker un solo titular a la vez, como redislock entre réplicas.
type exclusiveLocker struct {
	mu   sync.Mutex
	held bool
}

func (l *exclusiveLocker) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, outbox.ErrLockNotObtained
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		return nil
	}, nil
}

func enqueue(t *testing.T, store *memory.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.Outbox().Enqueue(context.Background(), &entity.OutboxMessage{
			ID: id, AggregateType: entity.AggregateSale, AggregateID: "sale-" + id,
			EventType: entity.EventSaleCreated, Payload: []byte(`{}`),
		}))
	}
}

func TestWorker_PublicaEnOrdenYMarcaSent(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1", "m2", "m3")
	pub := &stubPublisher{}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithRetryBaseDelay(0))

	sent := w.ProcessOnce(context.Background())
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"m1", "m2", "m3"}, pub.ids)

	for _, msg := range store.AllOutbox() {
		assert.Equal(t, entity.OutboxStatusSent, msg.Status)
	}
	assert.Equal(t, 0, w.ProcessOnce(context.Background()))
}

func TestWorker_ReintentaYLuegoPublica(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1")
	pub := &stubPublisher{errs: []error{errors.New("broker caído"), errors.New("broker caído")}}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithRetryBaseDelay(0), outbox.WithMaxAttempts(3))

	assert.Equal(t, 1, w.ProcessOnce(context.Background()))
	assert.Equal(t, 3, pub.calls())
	assert.Equal(t, entity.OutboxStatusSent, store.AllOutbox()[0].Status)
}

func TestWorker_MarcaFailedTrasAgotarIntentos(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1", "m2")
	pub := &stubPublisher{always: errors.New("broker caído")}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithRetryBaseDelay(0), outbox.WithMaxAttempts(2))

	assert.Equal(t, 0, w.ProcessOnce(context.Background()))
	assert.Equal(t, 4, pub.calls())
	for _, msg := range store.AllOutbox() {
		assert.Equal(t, entity.OutboxStatusFailed, msg.Status)
	}
}

func TestWorker_BatchSize(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1", "m2", "m3")
	pub := &stubPublisher{}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithBatchSize(2), outbox.WithRetryBaseDelay(0))

	assert.Equal(t, 2, w.ProcessOnce(context.Background()))
	assert.Equal(t, 1, w.ProcessOnce(context.Background()))
}

func TestWorker_SinBloqueoOmiteCiclo(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1")
	pub := &stubPublisher{}
	locker := &stubLocker{err: outbox.ErrLockNotObtained}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithLocker(locker))

	assert.Equal(t, 0, w.ProcessOnce(context.Background()))
	assert.Equal(t, 0, pub.calls())
	assert.Equal(t, entity.OutboxStatusPending, store.AllOutbox()[0].Status)
}

func TestWorker_ConBloqueoPublicaYLibera(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1")
	pub := &stubPublisher{}
	locker := &stubLocker{}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithLocker(locker))

	assert.Equal(t, 1, w.ProcessOnce(context.Background()))
	assert.Equal(t, 1, locker.released)
}

func TestWorker_RunTerminaAlCancelar(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1")
	pub := &stubPublisher{}
	w := outbox.NewWorker(store.Outbox(), pub, outbox.WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run no terminó tras cancelar el contexto")
	}
}

func TestWorker_DosReplicasConBloqueoPublicanUnaVez(t *testing.T) {
	store := memory.New()
	enqueue(t, store, "m1", "m2", "m3", "m4")
	pub := &stubPublisher{}
	locker := &exclusiveLocker{}
	a := outbox.NewWorker(store.Outbox(), pub, outbox.WithLocker(locker))
	b := outbox.NewWorker(store.Outbox(), pub, outbox.WithLocker(locker))

	var wg sync.WaitGroup
	for _, w := range []*outbox.Worker{a, b, a, b} {
		wg.Add(1)
		go func(w *outbox.Worker) {
			defer wg.Done()
			w.ProcessOnce(context.Background())
		}(w)
	}
	wg.Wait()
	// Un ciclo más por si todos los concurrentes encontraron el bloqueo tomado.
	a.ProcessOnce(context.Background())

	assert.Equal(t, 4, pub.calls(), "cada mensaje se publica una sola vez")
	for _, m := range store.AllOutbox() {
		assert.Equal(t, entity.OutboxStatusSent, m.Status)
	}
}
