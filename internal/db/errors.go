package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeExclusionViolation  = "23P01"
)

// Violation names the constraint a write broke.
type Violation struct {
	Code       string
	Constraint string
}

// ConstraintViolation reports whether err is a unique, foreign key or
// exclusion violation and which constraint raised it.
func ConstraintViolation(err error) (Violation, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Violation{}, false
	}
	switch pgErr.Code {
	case CodeUniqueViolation, CodeForeignKeyViolation, CodeExclusionViolation:
		return Violation{Code: pgErr.Code, Constraint: pgErr.ConstraintName}, true
	}
	return Violation{}, false
}

func IsUniqueViolation(err error) bool {
	v, ok := ConstraintViolation(err)
	return ok && v.Code == CodeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	v, ok := ConstraintViolation(err)
	return ok && v.Code == CodeForeignKeyViolation
}
