// Package pool constructs tuned database/sql connection pools.
//
// The routing layer treats connection handles as opaque; this package
// provides the standard way to build them. It registers the pgx and
// go-sql-driver/mysql drivers, applies consistent pool limits, and
// verifies connectivity before handing the pool back.
//
// # Usage
//
// Build primary and replica pools from credentials, then hand them to the
// routing client:
//
//	primary, err := pool.Open(ctx, pool.Config{
//	    Driver: pool.DriverPostgres,
//	    DSN:    pool.PostgresDSN(primaryCreds),
//	})
//	if err != nil {
//	    return err
//	}
//
//	replica, err := pool.Open(ctx, pool.Config{
//	    Driver: pool.DriverPostgres,
//	    DSN:    pool.PostgresDSN(replicaCreds),
//	})
//	if err != nil {
//	    return err
//	}
//
//	client, err := tandem.NewClientFromDB(primary, replica)
//
// Pools are caller-owned: closing the routing client does not close them.
package pool
