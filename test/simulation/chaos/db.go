// Package chaos wraps a connection handle with configurable fault
// injection for the routing simulation.
package chaos

import (
	"context"
	"crypto/rand"
	"database/sql"
	"database/sql/driver"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
)

// Config holds the fault injection settings for a handle.
type Config struct {
	LatencyFunc func() time.Duration // Return 0 for no delay
	ErrorFunc   func() error         // Return nil for no error
	DropRate    float64              // 0.0-1.0 probability to drop a call
}

// DB wraps a connection handle to inject faults before delegating.
//
// Dropped calls fail with driver.ErrBadConn so they classify as transient
// and exercise the retry path. QueryRowContext only honors the configured
// latency: database/sql offers no way to construct an errored *sql.Row,
// so error injection applies to the other methods.
type DB struct {
	wrapped sqladapter.DB

	mu     sync.Mutex // serializes the convenience setters
	config atomic.Pointer[Config]
}

// Compile-time assertion that DB implements the adapter interface.
var _ sqladapter.DB = (*DB)(nil)

// NewDB creates a fault-injecting wrapper around the provided handle.
func NewDB(wrapped sqladapter.DB) *DB {
	return &DB{wrapped: wrapped}
}

// SetConfig replaces the fault configuration for the handle.
func (d *DB) SetConfig(cfg Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Store(&cfg)
}

// SetErrorRate drops the given fraction of calls, keeping the current
// latency setting. A rate of 1.0 simulates a complete outage.
func (d *DB) SetErrorRate(rate float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := d.snapshot()
	cfg.DropRate = rate
	d.config.Store(&cfg)
}

// SetLatency delays every call by the given duration, keeping the current
// error rate. Zero removes the delay.
func (d *DB) SetLatency(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := d.snapshot()
	if latency > 0 {
		cfg.LatencyFunc = func() time.Duration { return latency }
	} else {
		cfg.LatencyFunc = nil
	}
	d.config.Store(&cfg)
}

// Reset removes all fault injection.
func (d *DB) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Store(&Config{})
}

// snapshot returns a copy of the current configuration. Callers must hold
// d.mu.
func (d *DB) snapshot() Config {
	if cfg := d.config.Load(); cfg != nil {
		return *cfg
	}

	return Config{}
}

func (d *DB) inject() error {
	cfg := d.config.Load()
	if cfg == nil {
		return nil
	}

	if cfg.LatencyFunc != nil {
		time.Sleep(cfg.LatencyFunc())
	}
	if cfg.DropRate > 0 {
		// Use crypto/rand for better randomness distribution
		n, _ := rand.Int(rand.Reader, big.NewInt(1000000))
		if float64(n.Int64())/1000000.0 < cfg.DropRate {
			return driver.ErrBadConn
		}
	}
	if cfg.ErrorFunc != nil {
		if err := cfg.ErrorFunc(); err != nil {
			return err
		}
	}

	return nil
}

// ExecContext injects faults, then delegates.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := d.inject(); err != nil {
		return nil, err
	}

	return d.wrapped.ExecContext(ctx, query, args...)
}

// QueryContext injects faults, then delegates.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := d.inject(); err != nil {
		return nil, err
	}

	return d.wrapped.QueryContext(ctx, query, args...)
}

// QueryRowContext honors the configured latency, then delegates. See the
// type doc for why error injection does not apply here.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if cfg := d.config.Load(); cfg != nil && cfg.LatencyFunc != nil {
		time.Sleep(cfg.LatencyFunc())
	}

	return d.wrapped.QueryRowContext(ctx, query, args...)
}

// BeginTx injects faults, then delegates.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if err := d.inject(); err != nil {
		return nil, err
	}

	return d.wrapped.BeginTx(ctx, opts)
}

// PingContext injects faults, then delegates. Health probes run through
// this path, so outages become visible to the monitor.
func (d *DB) PingContext(ctx context.Context) error {
	if err := d.inject(); err != nil {
		return err
	}

	return d.wrapped.PingContext(ctx)
}

// Close closes the wrapped handle.
func (d *DB) Close() error {
	return d.wrapped.Close()
}
