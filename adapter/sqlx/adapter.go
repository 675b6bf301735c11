// Package sqlx adapts jmoiron/sqlx handles for use with tandem.
//
// The adapter satisfies the base adapter/sql contract while exposing the
// sqlx struct-scanning helpers, so callers can route operations through
// tandem and still scan rows into structs.
package sqlx

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
)

// DB extends the base adapter contract with sqlx struct-scanning helpers.
type DB interface {
	sqladapter.DB

	// GetContext executes a query expected to return one row and scans
	// it into dest.
	GetContext(ctx context.Context, dest any, query string, args ...any) error

	// SelectContext executes a query and scans all rows into the slice
	// pointed to by dest.
	SelectContext(ctx context.Context, dest any, query string, args ...any) error

	// NamedExecContext executes a query with named parameters bound
	// from the fields of arg.
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// dbAdapter wraps *sqlx.DB to implement the DB interface.
type dbAdapter struct {
	db *sqlx.DB
}

// NewDBAdapter creates a new DB adapter wrapping a *sqlx.DB.
//
// Parameters:
//   - db: The underlying sqlx.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func NewDBAdapter(db *sqlx.DB) DB {
	return &dbAdapter{db: db}
}

// WrapDB is an alias for NewDBAdapter that wraps a *sqlx.DB.
//
// Example:
//
//	primary := sqlx.MustOpen("pgx", primaryDSN)
//	replica := sqlx.MustOpen("pgx", replicaDSN)
//	client, _ := tandem.NewClient(sqlxadapter.WrapDB(primary), sqlxadapter.WrapDB(replica))
//
// Parameters:
//   - db: The underlying sqlx.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func WrapDB(db *sqlx.DB) DB {
	return NewDBAdapter(db)
}

// From extracts the sqlx-extended handle from a routed base handle.
//
// Operations receive the base adapter interface from the routing client;
// when both handles were wrapped with this package, From recovers the
// sqlx helpers inside the operation:
//
//	tandem.Read(ctx, client, true, func(ctx context.Context, db tandem.DB) (Account, error) {
//	    var acct Account
//	    x, ok := sqlxadapter.From(db)
//	    if !ok {
//	        return acct, errors.New("handle does not support struct scanning")
//	    }
//	    err := x.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE id = $1", id)
//	    return acct, err
//	})
//
// Parameters:
//   - db: A handle previously wrapped with WrapDB or NewDBAdapter
//
// Returns:
//   - DB: The sqlx-extended handle
//   - bool: false when db was not wrapped by this package
func From(db sqladapter.DB) (DB, bool) {
	x, ok := db.(DB)

	return x, ok
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

// GetContext executes a query expected to return one row and scans it into dest.
func (a *dbAdapter) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return a.db.GetContext(ctx, dest, query, args...)
}

// SelectContext executes a query and scans all rows into the slice pointed to by dest.
func (a *dbAdapter) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return a.db.SelectContext(ctx, dest, query, args...)
}

// NamedExecContext executes a query with named parameters bound from the fields of arg.
func (a *dbAdapter) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return a.db.NamedExecContext(ctx, query, arg)
}
