// Package runtime provides the database connection and the error taxonomy
// shared by schema definitions and migration units.
package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDependencyMissing is returned when a table referenced by a foreign key does not exist.
	ErrDependencyMissing = errors.New("dependency missing")

	// ErrAlreadyExists is returned when creating a table that is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when dropping a table that is not present.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation is returned when the engine cannot express a declared
	// type or constraint, or when a row violates one.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// SchemaError reports a failed schema operation on a table.
type SchemaError struct {
	Op    string // "create table", "drop table", ...
	Table string
	Err   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// MigrationError reports a failed migration unit.
type MigrationError struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error (version %s): %s: %v", e.Version, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// PostgreSQL SQLSTATE codes the taxonomy cares about.
const (
	codeDuplicateTable      = "42P07"
	codeDuplicateObject     = "42710"
	codeUndefinedTable      = "42P01"
	codeUndefinedObject     = "42704"
	codeInvalidTextRepr     = "22P02"
	codeFeatureNotSupported = "0A000"
	classIntegrityViolation = "23"
)

// Classify maps an engine error onto the taxonomy. The returned error wraps
// both the taxonomy sentinel and the original error, so errors.Is works for
// the sentinel and errors.As still finds the *pgconn.PgError. Errors that do
// not map are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var kind error
	switch {
	case pgErr.Code == codeDuplicateTable, pgErr.Code == codeDuplicateObject:
		kind = ErrAlreadyExists
	case pgErr.Code == codeUndefinedTable:
		kind = ErrNotFound
	case pgErr.Code == codeUndefinedObject,
		pgErr.Code == codeInvalidTextRepr,
		pgErr.Code == codeFeatureNotSupported,
		strings.HasPrefix(pgErr.Code, classIntegrityViolation):
		kind = ErrConstraintViolation
	default:
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}

// IsIntegrityViolation reports whether err is a row-level constraint failure
// (not null, foreign key, check, unique, or invalid enum input).
func IsIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, classIntegrityViolation) || pgErr.Code == codeInvalidTextRepr
}
