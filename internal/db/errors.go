package db

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNoRows is returned when a query matches nothing. Both backends map
// their driver-level no-row errors to this one so callers never import a
// driver package just to check for a miss.
var ErrNoRows = errors.New("no rows in result set")

// IsNoRows reports whether err indicates a missing row, regardless of
// which backend produced it.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, pgx.ErrNoRows)
}
