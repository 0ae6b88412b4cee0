package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	CodeLockNotAvailable     = "55P03"
	CodeDeadlockDetected     = "40P01"
	CodeSerializationFailure = "40001"
	CodeUniqueViolation      = "23505"
	CodeExclusionViolation   = "23P01"
	CodeCheckViolation       = "23514"
)

// SQLState extracts the Postgres error code from either driver's error type.
func SQLState(err error) string {
	var driverErr pgdriver.Error
	if errors.As(err, &driverErr) {
		return driverErr.Field('C')
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsLockContention reports a bounded lock wait that gave up, a deadlock, or a
// serialization failure. All of them succeed on retry.
func IsLockContention(err error) bool {
	switch SQLState(err) {
	case CodeLockNotAvailable, CodeDeadlockDetected, CodeSerializationFailure:
		return true
	}
	return false
}

func IsExclusionViolation(err error) bool {
	return SQLState(err) == CodeExclusionViolation
}

func IsUniqueViolation(err error) bool {
	return SQLState(err) == CodeUniqueViolation
}
