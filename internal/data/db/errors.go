package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/platform/apierr"
)

// MapError folds storage failures into the apierr taxonomy. Errors that
// already carry a kind pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var known *apierr.Error
	if errors.As(err, &known) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apierr.Wrap(apierr.KindNotFound, apierr.CodeItemNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierr.Wrap(apierr.KindTransient, apierr.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return apierr.Wrap(apierr.KindConflict, apierr.CodeAlreadyOwned, op, err) // unique_violation
		case "23514":
			return apierr.Wrap(apierr.KindConflict, apierr.CodeInsufficientCoins, op, err) // check_violation
		case "40001", "40P01", "55P03":
			return apierr.Wrap(apierr.KindTransient, apierr.CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case IsUniqueViolation(err):
		return apierr.Wrap(apierr.KindConflict, apierr.CodeAlreadyOwned, op, err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "temporar"):
		return apierr.Wrap(apierr.KindTransient, apierr.CodeRetryable, op, err)
	default:
		return apierr.Internal(op, err)
	}
}

// IsUniqueViolation recognises unique-key failures from both drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}
