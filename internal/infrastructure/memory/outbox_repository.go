package memory

import (
	"context"
	"time"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

var _ repository.OutboxRepository = (*outboxRepo)(nil)

type outboxRepo struct {
	s  *Store
	tx *memTx
}

// Enqueue guarda el evento con estado pending.
func (r *outboxRepo) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	return r.s.write(ctx, r.tx, "outbox.enqueue", func(tx *memTx) error {
		if _, ok := r.s.outboxMessage(tx, msg.ID); ok {
			return domain.ErrDuplicate
		}
		now := time.Now().UTC()
		cp := *msg
		cp.Status = entity.OutboxStatusPending
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		tx.outbox[msg.ID] = &cp
		tx.newOutbox = append(tx.newOutbox, msg.ID)
		return nil
	})
}

// PullPending devuelve hasta limit mensajes pending, más antiguos primero.
func (r *outboxRepo) PullPending(_ context.Context, limit int) ([]*entity.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]*entity.OutboxMessage, 0, limit)
	for _, msg := range r.s.allOutbox(r.tx) {
		if msg.Status != entity.OutboxStatusPending {
			continue
		}
		cp := *msg
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, entity.OutboxStatusSent)
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, entity.OutboxStatusFailed)
}

func (r *outboxRepo) mark(ctx context.Context, id, status string) error {
	return r.s.write(ctx, r.tx, "outbox.mark", func(tx *memTx) error {
		current, ok := r.s.outboxMessage(tx, id)
		if !ok {
			return domain.ErrNotFound
		}
		cp := *current
		cp.Status = status
		cp.AttemptCount++
		cp.UpdatedAt = time.Now().UTC()
		tx.outbox[id] = &cp
		return nil
	})
}
