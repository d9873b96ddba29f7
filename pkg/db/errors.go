package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is set, only violations of that constraint match.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode && matchesConstraint(pgErr.ConstraintName, constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && matchesConstraint(pqErr.Constraint, constraintName)
	}

	// sqlite reports "UNIQUE constraint failed: table.column"; callers name
	// the column list when they need precision there.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

func matchesConstraint(actual, want string) bool {
	return want == "" || actual == want
}

// UniqueKey names a unique constraint by its Postgres name and by the
// "table.column" list sqlite reports for it.
type UniqueKey struct {
	Constraint string
	Columns    string
}

// IsUniqueViolationOf reports whether err violates one of keys.
func IsUniqueViolationOf(err error, keys ...UniqueKey) bool {
	for _, key := range keys {
		if key.Constraint != "" && IsUniqueViolation(err, key.Constraint) {
			return true
		}
		if key.Columns != "" && IsUniqueViolation(err, "failed: "+key.Columns) {
			return true
		}
	}
	return false
}
