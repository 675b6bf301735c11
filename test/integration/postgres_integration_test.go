package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cloudbank/tandem"
	"github.com/cloudbank/tandem/test/testutil"
)

// readMarker reads the backend marker row from the given table through the
// client.
func readMarker(ctx context.Context, t *testing.T, client *tandem.Client, table string, fallbackAllowed bool) string {
	t.Helper()

	value, err := tandem.Read(ctx, client, fallbackAllowed,
		func(ctx context.Context, db tandem.DB) (string, error) {
			var v string
			query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", table)
			err := db.QueryRowContext(ctx, query, "source").Scan(&v)

			return v, err
		})
	require.NoError(t, err)

	return value
}

func TestPostgresReadPrefersReplicaIntegration(t *testing.T) {
	primary, replica := getSharedPair(t)
	ctx := t.Context()

	table := createTableOnBoth(t, "read_routing", markerTableSchema)
	seedBackendMarkers(t, table)

	client, err := tandem.NewClientFromDB(primary.DB, replica.DB)
	require.NoError(t, err)
	defer client.Close()

	for range 5 {
		require.Equal(t, "replica", readMarker(ctx, t, client, table, true))
	}
}

func TestPostgresTrackedWriteRedirectsIntegration(t *testing.T) {
	primary, replica := getSharedPair(t)
	ctx := t.Context()

	table := createTableOnBoth(t, "write_redirect", markerTableSchema)
	seedBackendMarkers(t, table)

	client, err := tandem.NewClientFromDB(primary.DB, replica.DB,
		tandem.WithLagThreshold(10*time.Second),
	)
	require.NoError(t, err)
	defer client.Close()

	_, err = tandem.Write(ctx, client, true,
		func(ctx context.Context, db tandem.DB) (sql.Result, error) {
			query := fmt.Sprintf("INSERT INTO %s (key, value) VALUES ($1, $2)", table)

			return db.ExecContext(ctx, query, "written", "yes")
		})
	require.NoError(t, err)

	// The write landed on the primary and only there.
	var value string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", table)
	err = primary.DB.QueryRowContext(ctx, query, "written").Scan(&value)
	require.NoError(t, err)
	require.Equal(t, "yes", value)

	err = replica.DB.QueryRowContext(ctx, query, "written").Scan(&value)
	require.ErrorIs(t, err, sql.ErrNoRows)

	// Inside the replication window, reads redirect to the primary.
	require.Equal(t, "primary", readMarker(ctx, t, client, table, true))

	client.ResetLagTracking(ctx)
	require.Equal(t, "replica", readMarker(ctx, t, client, table, true))
}

func TestPostgresAccountFlowIntegration(t *testing.T) {
	primary, replica := getSharedPair(t)
	ctx := t.Context()

	table := createTableOnBoth(t, "accounts", accountsTableSchema)

	client, err := tandem.NewClientFromDB(primary.DB, replica.DB,
		tandem.WithLagThreshold(10*time.Second),
	)
	require.NoError(t, err)
	defer client.Close()

	affected, err := tandem.Write(ctx, client, true,
		func(ctx context.Context, db tandem.DB) (int64, error) {
			query := fmt.Sprintf("INSERT INTO %s (id, owner, balance) VALUES ($1, $2, $3)", table)
			result, err := db.ExecContext(ctx, query, 1, "alice", 100)
			if err != nil {
				return 0, err
			}

			return result.RowsAffected()
		})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	// A fresh read redirects to the primary, where the row exists.
	balance, err := tandem.Read(ctx, client, true,
		func(ctx context.Context, db tandem.DB) (int64, error) {
			var b int64
			query := fmt.Sprintf("SELECT balance FROM %s WHERE id = $1", table)
			err := db.QueryRowContext(ctx, query, 1).Scan(&b)

			return b, err
		})
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)

	// A stale-tolerant read goes to the replica, which never saw the row.
	// The containers are independent instances, so the miss is guaranteed.
	_, err = tandem.Read(ctx, client, false,
		func(ctx context.Context, db tandem.DB) (int64, error) {
			var b int64
			query := fmt.Sprintf("SELECT balance FROM %s WHERE id = $1", table)
			err := db.QueryRowContext(ctx, query, 1).Scan(&b)

			return b, err
		})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPostgresConcurrentReadsIntegration(t *testing.T) {
	primary, replica := getSharedPair(t)
	ctx := t.Context()

	table := createTableOnBoth(t, "concurrent", markerTableSchema)
	seedBackendMarkers(t, table)

	client, err := tandem.NewClientFromDB(primary.DB, replica.DB)
	require.NoError(t, err)
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)

	// One writer keeps opening replication windows while readers route.
	g.Go(func() error {
		for i := range 10 {
			query := fmt.Sprintf(
				"INSERT INTO %s (key, value) VALUES ('w', $1) ON CONFLICT (key) DO UPDATE SET value = $1",
				table,
			)
			_, err := tandem.Write(gctx, client, true,
				func(ctx context.Context, db tandem.DB) (sql.Result, error) {
					return db.ExecContext(ctx, query, fmt.Sprintf("v%d", i))
				})
			if err != nil {
				return err
			}
		}

		return nil
	})

	for range 8 {
		g.Go(func() error {
			for range 20 {
				value, err := tandem.Read(gctx, client, true,
					func(ctx context.Context, db tandem.DB) (string, error) {
						var v string
						query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", table)
						err := db.QueryRowContext(ctx, query, "source").Scan(&v)

						return v, err
					})
				if err != nil {
					return err
				}
				if value != "primary" && value != "replica" {
					return fmt.Errorf("unexpected marker value %q", value)
				}
			}

			return nil
		})
	}

	require.NoError(t, g.Wait())
}

func TestPostgresReplicaStopFailoverIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()

	// This test stops its replica container, so it cannot use the shared pair.
	primary, replica, err := testutil.StartPostgresPair(ctx, t)
	if err != nil {
		t.Skipf("containers not available: %v", err)
	}

	markerDDL := `CREATE TABLE markers (key TEXT PRIMARY KEY, value TEXT)`
	require.NoError(t, testutil.CreateTable(ctx, primary.DB, markerDDL))
	require.NoError(t, testutil.CreateTable(ctx, replica.DB, markerDDL))

	insert := `INSERT INTO markers (key, value) VALUES ($1, $2)`
	_, err = primary.DB.ExecContext(ctx, insert, "source", "primary")
	require.NoError(t, err)
	_, err = replica.DB.ExecContext(ctx, insert, "source", "replica")
	require.NoError(t, err)

	client, err := tandem.NewClientFromDB(primary.DB, replica.DB)
	require.NoError(t, err)
	defer client.Close()

	require.Equal(t, "replica", readMarker(ctx, t, client, "markers", true))
	require.True(t, client.IsReplicaAvailable())

	// Take the replica down and force a probe past the throttle.
	stopTimeout := 10 * time.Second
	require.NoError(t, replica.Container.Stop(ctx, &stopTimeout))

	require.Equal(t, tandem.HealthUnavailable, client.ForceReplicaHealthCheck(ctx))
	require.False(t, client.IsReplicaAvailable())
	require.Equal(t, "primary", readMarker(ctx, t, client, "markers", true))

	select {
	case tr := <-client.Events():
		require.Equal(t, tandem.HealthAvailable, tr.From)
		require.Equal(t, tandem.HealthUnavailable, tr.To)
		require.Error(t, tr.Err)
	case <-time.After(time.Second):
		t.Fatal("expected a failover transition event")
	}
}
