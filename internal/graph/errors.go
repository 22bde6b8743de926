package graph

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/netgrid-io/netgrid/internal/errs"
)

var (
	// ErrNodeNotFound is returned when a node id does not exist in the store
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an expected relationship is missing
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateIndexEntry is returned when a unique index entry already exists
	ErrDuplicateIndexEntry = errors.New("duplicate index entry")
)

// convertDBError maps backend-specific errors onto the package's sentinels so
// callers never have to import driver packages.
func convertDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNodeNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateIndexEntry
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // unique_violation
			return ErrDuplicateIndexEntry
		}
		return err
	}

	return err
}

// AsInvalidArgument promotes a duplicate-index failure to the engine's
// InvalidArgument kind with a caller-supplied message.
func AsInvalidArgument(err error, format string, args ...interface{}) error {
	if errors.Is(err, ErrDuplicateIndexEntry) {
		return errs.InvalidArgument(format, args...)
	}
	return err
}
