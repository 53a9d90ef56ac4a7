package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isMalformedID reports a uuid column compared against a non-uuid string;
// such an id cannot exist, so callers treat it as not found.
func isMalformedID(err error) bool {
	return pgCode(err) == pgInvalidTextRepr
}
