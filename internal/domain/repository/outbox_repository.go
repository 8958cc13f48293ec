package repository

import (
	"context"

	"github.com/jhoicas/agromarket-api/internal/domain/entity"
)

// OutboxRepository persiste eventos para publicación posterior (transactional outbox).
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *entity.OutboxMessage) error
	// PullPending devuelve hasta limit mensajes pendientes, más antiguos primero.
	PullPending(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}
