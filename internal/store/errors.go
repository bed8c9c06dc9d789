package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique constraint is violated
	ErrConflict = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint
	// is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrUnknownModel is returned when an operation names a model the
	// adapter has no table for
	ErrUnknownModel = errors.New("unknown model")
)

// ConvertDBError maps database-specific errors onto the store taxonomy
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, pgErr.Detail)
		}
	}

	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
