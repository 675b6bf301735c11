package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/cloudbank/tandem/pool"
)

// PostgresContainer wraps a PostgreSQL test container and its connection pool.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        *sql.DB
}

// Close closes the connection pool (does not terminate the container).
func (c *PostgresContainer) Close() {
	if c.DB != nil {
		_ = c.DB.Close()
		c.DB = nil
	}
}

// Terminate terminates the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.Close()

	if c.Container != nil {
		return c.Container.Terminate(ctx)
	}

	return nil
}

// PostgresOptions configures the PostgreSQL container.
type PostgresOptions struct {
	// Image is the PostgreSQL image to use. Defaults to "postgres:16-alpine".
	Image string
	// Database is the database to create. Defaults to "tandem_test".
	Database string
	// Username is the superuser name. Defaults to "tandem".
	Username string
	// Password is the superuser password. Defaults to "tandem".
	Password string
}

// DefaultPostgresOptions returns default options for the PostgreSQL container.
func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{
		Image:    "postgres:16-alpine",
		Database: "tandem_test",
		Username: "tandem",
		Password: "tandem",
	}
}

// StartPostgresContainer starts a PostgreSQL container and opens a pool
// against it.
//
// This function is designed for use in TestMain where *testing.T is not
// available. Caller is responsible for calling Terminate(ctx) for cleanup.
//
// Parameters:
//   - ctx: Context for container operations
//   - opts: Configuration options
//
// Returns:
//   - *PostgresContainer: Container with connection details and an open pool
//   - error: Error if the container fails to start
func StartPostgresContainer(ctx context.Context, opts PostgresOptions) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx, opts.Image,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.Username),
		postgres.WithPassword(opts.Password),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := pool.Open(ctx, pool.Config{
		Driver:         pool.DriverPostgres,
		DSN:            dsn,
		ConnectTimeout: 30 * time.Second,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}, nil
}

// StartTwoPostgresContainers starts two independent PostgreSQL containers for
// primary/replica routing tests.
//
// The second container is a standalone instance, not a streaming replica:
// routing tests verify which pool each statement lands on, so replication
// itself is unnecessary and the pair keeps test setup fast.
//
// This function is designed for use in TestMain where *testing.T is not
// available. Caller is responsible for calling Terminate(ctx) on both
// containers for cleanup.
//
// Parameters:
//   - ctx: Context for container operations
//
// Returns:
//   - primary: First PostgreSQL container
//   - replica: Second PostgreSQL container
//   - error: Error if any container fails to start
func StartTwoPostgresContainers(ctx context.Context) (primary, replica *PostgresContainer, err error) {
	optsPrimary := DefaultPostgresOptions()
	optsPrimary.Database = "tandem_primary"

	optsReplica := DefaultPostgresOptions()
	optsReplica.Database = "tandem_replica"

	primary, err = StartPostgresContainer(ctx, optsPrimary)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start primary: %w", err)
	}

	replica, err = StartPostgresContainer(ctx, optsReplica)
	if err != nil {
		_ = primary.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to start replica: %w", err)
	}

	return primary, replica, nil
}

// StartPostgres starts a PostgreSQL container for testing.
//
// The container and its connection pool are automatically cleaned up when
// the test completes.
//
// Parameters:
//   - ctx: Context for container operations
//   - t: Testing context for cleanup registration
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *PostgresContainer: Container with connection details and an open pool
//   - error: Error if the container fails to start
func StartPostgres(ctx context.Context, t *testing.T, opts *PostgresOptions) (*PostgresContainer, error) {
	t.Helper()

	if opts == nil {
		defaultOpts := DefaultPostgresOptions()
		opts = &defaultOpts
	}

	container, err := StartPostgresContainer(ctx, *opts)
	if err != nil {
		return nil, err
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	return container, nil
}

// StartPostgresPair starts two independent PostgreSQL containers with
// automatic test cleanup.
//
// Parameters:
//   - ctx: Context for container operations
//   - t: Testing context for cleanup registration
//
// Returns:
//   - primary: First PostgreSQL container
//   - replica: Second PostgreSQL container
//   - error: Error if any container fails to start
func StartPostgresPair(ctx context.Context, t *testing.T) (primary, replica *PostgresContainer, err error) {
	t.Helper()

	primary, replica, err = StartTwoPostgresContainers(ctx)
	if err != nil {
		return nil, nil, err
	}

	t.Cleanup(func() {
		if err := primary.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate primary container: %v", err)
		}
		if err := replica.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate replica container: %v", err)
		}
	})

	return primary, replica, nil
}

// CreateTable creates a table using the given database handle.
//
// Parameters:
//   - ctx: Context for the statement
//   - db: Database handle
//   - ddl: CREATE TABLE statement
//
// Returns:
//   - error: Error if table creation fails
func CreateTable(ctx context.Context, db *sql.DB, ddl string) error {
	_, err := db.ExecContext(ctx, ddl)

	return err
}
