// Package db wraps database/sql behind a small interface so stores can be
// tested with fakes.
package db

import (
	"context"
	"database/sql"
	"errors"
)

// Database is the subset of a connection pool used by stores.
type Database interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Ping(ctx context.Context) error
	Close() error
}

// Row is a single result row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result reports the outcome of Exec.
type Result interface {
	RowsAffected() (int64, error)
}

// IsNoRows checks if the error is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
