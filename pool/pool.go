package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cloudbank/tandem/health"
	"github.com/cloudbank/tandem/secrets"
)

// Driver names accepted by Config. Both drivers register with database/sql
// when this package is imported.
const (
	// DriverPostgres opens connections through github.com/jackc/pgx/v5/stdlib.
	DriverPostgres = "pgx"

	// DriverMySQL opens connections through github.com/go-sql-driver/mysql.
	DriverMySQL = "mysql"
)

// Default pool tuning applied when Config fields are zero.
const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultConnMaxIdleTime = 10 * time.Minute
	DefaultConnectTimeout  = 5 * time.Second
)

// ErrDSNRequired indicates Open was called without a DSN.
var ErrDSNRequired = errors.New("pool: dsn is required")

// Config holds connection pool configuration.
//
// Zero-valued tuning fields fall back to the package defaults.
type Config struct {
	// Driver selects the database driver: DriverPostgres or DriverMySQL.
	// Defaults to DriverPostgres.
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string. Required.
	DSN string `yaml:"dsn"`

	// MaxOpenConns limits open connections. Default: 10.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections. Default: 2.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds connection age. Default: 30m.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// ConnMaxIdleTime bounds idle connection age. Default: 10m.
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	// ConnectTimeout bounds the verification ping in Open. Default: 5s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Open creates a database/sql pool, applies the configured limits, and
// verifies connectivity with a ping bounded by ConnectTimeout.
//
// The returned pool is closed if verification fails.
//
// Parameters:
//   - ctx: Context for the verification ping
//   - cfg: Pool configuration
//
// Returns:
//   - *sql.DB: A verified connection pool
//   - error: An error if the pool cannot be opened or verified
//
// Example:
//
//	db, err := pool.Open(ctx, pool.Config{
//	    Driver: pool.DriverPostgres,
//	    DSN:    pool.PostgresDSN(creds),
//	})
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrDSNRequired
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(DefaultMaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	} else {
		db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping %s pool: %w", driver, err)
	}

	return db, nil
}

// PostgresDSN builds a pgx-compatible URL from credentials.
//
// Parameters:
//   - creds: The database credentials
//
// Returns:
//   - string: A postgres:// connection URL
func PostgresDSN(creds secrets.Credentials) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port)),
		Path:   "/" + creds.DBName,
	}

	return u.String()
}

// MySQLDSN builds a go-sql-driver DSN from credentials.
//
// ParseTime is enabled so DATETIME columns scan into time.Time.
//
// Parameters:
//   - creds: The database credentials
//
// Returns:
//   - string: A user:pass@tcp(host:port)/dbname DSN
func MySQLDSN(creds secrets.Credentials) string {
	cfg := mysql.NewConfig()
	cfg.User = creds.Username
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	cfg.DBName = creds.DBName
	cfg.ParseTime = true

	return cfg.FormatDSN()
}

// Probe returns a health.Probe that pings the pool.
//
// Parameters:
//   - db: The pool to probe
//
// Returns:
//   - health.Probe: A probe for use with the health monitor
//
// Example:
//
//	client, _ := tandem.NewClientFromDB(primary, replica,
//	    tandem.WithProbe(pool.Probe(replica)),
//	)
func Probe(db *sql.DB) health.Probe {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
