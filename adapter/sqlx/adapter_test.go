package sqlx_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	sqlxadapter "github.com/cloudbank/tandem/adapter/sqlx"
)

type account struct {
	ID      int    `db:"id"`
	Owner   string `db:"owner"`
	Balance int64  `db:"balance"`
}

func openTestDB(t *testing.T) sqlxadapter.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT, balance INTEGER)")
	require.NoError(t, err)

	return sqlxadapter.WrapDB(db)
}

func TestNewDBAdapter(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	adapter := sqlxadapter.NewDBAdapter(db)
	require.NotNil(t, adapter)

	// Satisfies both the extended and the base adapter contracts
	require.Implements(t, (*sqlxadapter.DB)(nil), adapter)
	require.Implements(t, (*sqladapter.DB)(nil), adapter)
}

func TestGetContext(t *testing.T) {
	adapter := openTestDB(t)
	ctx := context.Background()

	_, err := adapter.ExecContext(ctx, "INSERT INTO accounts (id, owner, balance) VALUES (?, ?, ?)", 1, "Alice", 100)
	require.NoError(t, err)

	var acct account
	err = adapter.GetContext(ctx, &acct, "SELECT id, owner, balance FROM accounts WHERE id = ?", 1)
	require.NoError(t, err)
	require.Equal(t, account{ID: 1, Owner: "Alice", Balance: 100}, acct)
}

func TestSelectContext(t *testing.T) {
	adapter := openTestDB(t)
	ctx := context.Background()

	_, err := adapter.ExecContext(ctx, "INSERT INTO accounts (id, owner, balance) VALUES (?, ?, ?)", 1, "Alice", 100)
	require.NoError(t, err)
	_, err = adapter.ExecContext(ctx, "INSERT INTO accounts (id, owner, balance) VALUES (?, ?, ?)", 2, "Bob", 50)
	require.NoError(t, err)

	var accts []account
	err = adapter.SelectContext(ctx, &accts, "SELECT id, owner, balance FROM accounts ORDER BY id")
	require.NoError(t, err)
	require.Len(t, accts, 2)
	require.Equal(t, "Alice", accts[0].Owner)
	require.Equal(t, "Bob", accts[1].Owner)
}

func TestNamedExecContext(t *testing.T) {
	adapter := openTestDB(t)
	ctx := context.Background()

	result, err := adapter.NamedExecContext(ctx,
		"INSERT INTO accounts (id, owner, balance) VALUES (:id, :owner, :balance)",
		account{ID: 7, Owner: "Carol", Balance: 250},
	)
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var acct account
	err = adapter.GetContext(ctx, &acct, "SELECT id, owner, balance FROM accounts WHERE id = ?", 7)
	require.NoError(t, err)
	require.Equal(t, "Carol", acct.Owner)
}

func TestFrom(t *testing.T) {
	adapter := openTestDB(t)

	// A handle wrapped by this package round-trips through the base interface
	var base sqladapter.DB = adapter
	extended, ok := sqlxadapter.From(base)
	require.True(t, ok)
	require.NotNil(t, extended)

	// A plain database/sql handle does not
	plain := plainDB(t)
	_, ok = sqlxadapter.From(plain)
	require.False(t, ok)
}

func plainDB(t *testing.T) sqladapter.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqladapter.WrapDB(db.DB)
}

func TestBeginTx(t *testing.T) {
	adapter := openTestDB(t)
	ctx := context.Background()

	tx, err := adapter.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, "INSERT INTO accounts (id, owner, balance) VALUES (?, ?, ?)", 1, "Alice", 100)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var acct account
	err = adapter.GetContext(ctx, &acct, "SELECT id, owner, balance FROM accounts WHERE id = ?", 1)
	require.NoError(t, err)
	require.Equal(t, int64(100), acct.Balance)
}

func TestPingContext(t *testing.T) {
	adapter := openTestDB(t)

	require.NoError(t, adapter.PingContext(context.Background()))
}
