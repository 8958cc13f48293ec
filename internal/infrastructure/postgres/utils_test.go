package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/agromarket-api/internal/domain"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	for _, code := range []string{codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure} {
		err := classify("lock", &pgconn.PgError{Code: code})
		assert.ErrorIs(t, err, domain.ErrBusy, code)
		assert.True(t, domain.IsRetryable(err))
	}

	err := classify("insert", &pgconn.PgError{Code: "23514"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrBusy)

	err = classify("commit", errors.New("conn closed"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "commit")

	stockErr := &domain.InsufficientStockError{ProductID: "p1", Requested: 2, Available: 1}
	assert.Same(t, stockErr, classify("op", stockErr))
	wrapped := fmt.Errorf("x: %w", domain.ErrBusy)
	assert.Equal(t, wrapped, classify("op", wrapped))
	assert.Equal(t, domain.ErrDuplicate, classify("op", domain.ErrDuplicate))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: codeLockNotAvailable}))
	assert.True(t, isUniqueViolation(errors.New("ERROR: duplicate key (SQLSTATE 23505)")))
}
