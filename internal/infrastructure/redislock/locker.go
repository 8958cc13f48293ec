// Package redislock adapta bsm/redislock al Locker del worker de outbox.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/jhoicas/agromarket-api/internal/application/outbox"
	"github.com/redis/go-redis/v9"
)

// Locker bloqueo distribuido sobre Redis.
type Locker struct {
	client *redislock.Client
}

var _ outbox.Locker = (*Locker)(nil)

// New crea el locker sobre un cliente Redis ya conectado.
func New(rdb redis.UniversalClient) *Locker {
	return &Locker{client: redislock.New(rdb)}
}

// Connect abre el cliente Redis y verifica la conexión con Ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Obtain intenta tomar key por ttl sin reintentos. ErrLockNotObtained si otra réplica lo tiene.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, outbox.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("redis: obtener bloqueo %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
