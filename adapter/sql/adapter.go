package sql

import (
	"context"
	"database/sql"
)

// DB represents a database connection handle usable with tandem.
//
// This interface wraps *sql.DB so operations can run against whichever
// backend the routing decision picked.
type DB interface {
	// ExecContext executes a query without returning any rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext executes a query that returns rows.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRowContext executes a query that returns at most one row.
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row

	// BeginTx starts a transaction on this handle.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// PingContext verifies the connection is alive.
	PingContext(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// dbAdapter wraps *sql.DB to implement the DB interface.
type dbAdapter struct {
	db *sql.DB
}

// NewDBAdapter creates a new DB adapter wrapping a *sql.DB.
//
// Parameters:
//   - db: The underlying sql.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func NewDBAdapter(db *sql.DB) DB {
	return &dbAdapter{db: db}
}

// WrapDB is an alias for NewDBAdapter that wraps a *sql.DB.
//
// This is useful for migrating existing database/sql code to tandem.
//
// Example:
//
//	primary, _ := sql.Open("pgx", primaryDSN)
//	tandem.NewClient(sqladapter.WrapDB(primary), nil) // primary-only mode
//
// Parameters:
//   - db: The underlying sql.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func WrapDB(db *sql.DB) DB {
	return NewDBAdapter(db)
}

// ExecContext executes a query without returning any rows.
func (a *dbAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (a *dbAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (a *dbAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on this handle.
func (a *dbAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return a.db.BeginTx(ctx, opts)
}

// PingContext verifies the connection is alive.
func (a *dbAdapter) PingContext(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *dbAdapter) Close() error {
	return a.db.Close()
}
