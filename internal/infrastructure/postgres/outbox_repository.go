package postgres

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain"
	"github.com/jhoicas/agromarket-api/internal/domain/entity"
	"github.com/jhoicas/agromarket-api/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo tabla outbox_messages.
type OutboxRepo struct {
	q Querier
}

// NewOutboxRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

// Enqueue inserta el evento como pending.
func (r *OutboxRepo) Enqueue(ctx context.Context, msg *entity.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)`
	_, err := r.q.Exec(ctx, query,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return classify("enqueue outbox", err)
	}
	msg.Status = entity.OutboxStatusPending
	return nil
}

// PullPending más antiguos primero. No bloquea filas: la exclusión entre réplicas la da el Locker del worker.
func (r *OutboxRepo) PullPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, attempt_count, created_at, updated_at
		FROM outbox_messages
		WHERE status = 'pending'
		ORDER BY created_at, seq
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("pull outbox", err)
	}
	defer rows.Close()
	var list []*entity.OutboxMessage
	for rows.Next() {
		var m entity.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload,
			&m.Status, &m.AttemptCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, classify("scan outbox", err)
		}
		list = append(list, &m)
	}
	return list, classify("pull outbox", rows.Err())
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, entity.OutboxStatusSent)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, entity.OutboxStatusFailed)
}

func (r *OutboxRepo) mark(ctx context.Context, id, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return classify("mark outbox", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
