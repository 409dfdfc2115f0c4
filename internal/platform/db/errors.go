package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeExclusionViolation   = "23P01"
	CodeSerializationFailure = "40001"
)

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool      { return pgCode(err) == CodeUniqueViolation }
func IsForeignKeyViolation(err error) bool  { return pgCode(err) == CodeForeignKeyViolation }
func IsExclusionViolation(err error) bool   { return pgCode(err) == CodeExclusionViolation }
func IsSerializationFailure(err error) bool { return pgCode(err) == CodeSerializationFailure }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
