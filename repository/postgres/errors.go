package postgres

import (
	"errors"
	"fmt"

	"lexdraft-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation
		return pgErr.Code == "23505"
	}
	return false
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23503 = foreign_key_violation
		return pgErr.Code == "23503"
	}
	return false
}

// translate maps driver errors onto the model sentinels
func translate(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case IsPgNoRowsError(err):
		return fmt.Errorf("%s: %w", resource, models.ErrNotFound)
	case IsPgForeignKeyError(err):
		return fmt.Errorf("%s references a missing record: %w", resource, models.ErrNotFound)
	case IsPgDuplicateError(err):
		return fmt.Errorf("%s already exists: %w", resource, models.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", resource, err)
	}
}
