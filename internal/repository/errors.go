package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// PostgreSQL SQLSTATE codes mapped onto port sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapError translates driver errors into port sentinels. Other errors are
// returned unchanged.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return port.ErrRecordNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return port.ErrAlreadyExists
		case pgForeignKeyViolation:
			return port.ErrRecordNotFound
		}
	}
	return err
}
