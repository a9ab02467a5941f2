package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// sqlState extracts the Postgres error code and constraint from either driver
// stack: pgx behind gorm, or lib/pq used by goose tooling.
func sqlState(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// IsUniqueViolation reports a unique violation from Postgres or sqlite. A
// non-empty constraintName must match the violated constraint on Postgres.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if code, constraint, ok := sqlState(err); ok {
		return code == sqlStateUniqueViolation && (constraintName == "" || constraint == constraintName)
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsSerializationFailure reports whether Postgres aborted the transaction so
// that it can be retried from the start.
func IsSerializationFailure(err error) bool {
	code, _, ok := sqlState(err)
	return ok && (code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected)
}
