package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
// An empty constraint matches any unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return matchPgError(err, codeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key failure.
func IsForeignKeyViolation(err error, constraint string) bool {
	return matchPgError(err, codeForeignKeyViolation, constraint)
}

// IsSerializationFailure reports whether a RepeatableRead transaction lost a write race
// or was picked as a deadlock victim. Both are safe to retry.
func IsSerializationFailure(err error) bool {
	return matchPgError(err, codeSerialization, "") || matchPgError(err, codeDeadlock, "")
}

func matchPgError(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
