package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/agromarket-api/internal/domain"
)

// Códigos SQLSTATE que indican contención de bloqueos.
const (
	codeLockNotAvailable     = "55P03" // lock_timeout agotado
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// isLockContention lock_timeout, deadlock o fallo de serialización.
func isLockContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return true
	}
	return false
}

// classify traduce un error del driver al error de dominio: ErrBusy por contención,
// ErrPersistence para todo lo demás. Los errores de dominio pasan sin cambios.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrBusy) || errors.Is(err, domain.ErrPersistence) ||
		errors.Is(err, domain.ErrDuplicate) || domain.IsCallerError(err) {
		return err
	}
	if isLockContention(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrBusy, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
