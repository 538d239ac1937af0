package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// PostgreSQL SQLSTATE codes that map onto the business taxonomy.
const (
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
	pgForeignKey       = "23503"
	pgCheckViolation   = "23514"
	pgUniqueViolation  = "23505"
	pgNumericRange     = "22003"
)

// Classify converts a storage error into an *apperr.Error. Errors that already
// carry a code pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if apperr.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.CodeNotFound, err, "record not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTransactionTimeout, err, "deadline exceeded")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled:
			return apperr.Wrap(apperr.CodeTransactionTimeout, err, "lock not acquired in time")
		case pgForeignKey:
			return apperr.Wrap(apperr.CodeNotFound, err, "referenced record does not exist")
		case pgCheckViolation:
			return apperr.Wrap(apperr.CodeInvalidArgument, err, "constraint %s violated", pgErr.ConstraintName)
		case pgUniqueViolation:
			return apperr.Wrap(apperr.CodeInvalidArgument, err, "duplicate value for %s", pgErr.ConstraintName)
		case pgNumericRange:
			return apperr.Wrap(apperr.CodeInvalidArgument, err, "value out of range")
		}
	}
	return apperr.Wrap(apperr.CodeStorageUnavailable, err, "")
}
