package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a scoped read or write matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a UNIQUE constraint.
// It is the authoritative race-detection signal for concurrent writers.
var ErrConflict = errors.New("unique constraint violation")

// isUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// classify wraps err with op, mapping driver errors onto the store sentinels.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// requireAffected returns ErrNotFound when a scoped write touched no row.
func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
