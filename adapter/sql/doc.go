// Package sql provides adapter interfaces for database/sql drivers to work with tandem.
//
// This package defines the [DB] interface that wraps the standard library's
// *sql.DB, allowing tandem to route operations between a primary and a
// replica regardless of the driver behind each pool (pgx, mysql, sqlite,
// and others).
//
// # Usage with the routing client
//
//	import (
//	    "database/sql"
//
//	    "github.com/cloudbank/tandem"
//	    sqladapter "github.com/cloudbank/tandem/adapter/sql"
//	    _ "github.com/jackc/pgx/v5/stdlib"
//	)
//
//	primary, _ := sql.Open("pgx", "postgres://primary:5432/bank")
//	replica, _ := sql.Open("pgx", "postgres://replica:5432/bank")
//
//	client, _ := tandem.NewClient(
//	    sqladapter.WrapDB(primary),
//	    sqladapter.WrapDB(replica),
//	)
//
//	balance, err := tandem.Read(ctx, client, true,
//	    func(ctx context.Context, db tandem.DB) (int64, error) {
//	        var b int64
//	        err := db.QueryRowContext(ctx,
//	            "SELECT balance FROM accounts WHERE id = $1", id).Scan(&b)
//	        return b, err
//	    })
//
// # Transactions
//
// [DB.BeginTx] opens a transaction on the handle the routing decision
// picked. The transaction stays on that handle until commit or rollback;
// it never migrates between backends:
//
//	_, err := client.RunWrite(ctx, true,
//	    func(ctx context.Context, db tandem.DB) (any, error) {
//	        tx, err := db.BeginTx(ctx, nil)
//	        if err != nil {
//	            return nil, err
//	        }
//	        defer tx.Rollback()
//
//	        if _, err := tx.ExecContext(ctx, "UPDATE accounts ...", args...); err != nil {
//	            return nil, err
//	        }
//
//	        return nil, tx.Commit()
//	    })
//
// The replica handle is assumed read-only; tandem never routes writes to
// it, but nothing here enforces that at the SQL level.
package sql
