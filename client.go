package tandem

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	"github.com/cloudbank/tandem/health"
	"github.com/cloudbank/tandem/internal/logging"
	"github.com/cloudbank/tandem/internal/metrics"
	"github.com/cloudbank/tandem/lag"
	"github.com/cloudbank/tandem/route"
	"github.com/cloudbank/tandem/types"
)

// Type aliases for convenience - re-export from types package.
type (
	DB               = sqladapter.DB
	Intent           = types.Intent
	Target           = types.Target
	HealthState      = types.HealthState
	FallbackReason   = types.FallbackReason
	Transition       = types.Transition
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export intent constants for convenience.
const (
	IntentRead  = types.IntentRead
	IntentWrite = types.IntentWrite
)

// Re-export target constants for convenience.
const (
	TargetPrimary = types.TargetPrimary
	TargetReplica = types.TargetReplica
)

// Re-export health state constants for convenience.
const (
	HealthAvailable   = types.HealthAvailable
	HealthUnavailable = types.HealthUnavailable
)

// Re-export fallback reason constants for convenience.
const (
	FallbackNone   = types.FallbackNone
	FallbackHealth = types.FallbackHealth
	FallbackLag    = types.FallbackLag
	FallbackError  = types.FallbackError
)

// Operation is the database call supplied by the caller per invocation.
//
// The client picks the backend and passes its handle; the operation runs
// the actual query against it. The context carries the chosen target,
// retrievable with [TargetFromContext].
//
// Operations may run more than once when retries fire, possibly against
// a different backend than the first attempt. Reads should therefore be
// side-effect free; writes are never retried after a permanent error.
type Operation func(ctx context.Context, db DB) (any, error)

// Client routes database operations between a primary and a replica.
//
// Writes always execute on the primary. Reads prefer the replica, falling
// back to the primary when the replica is unavailable, lagging behind a
// tracked write, or failing repeatedly. All routing state is process-local.
//
// A nil replica puts the client in primary-only mode: every operation
// executes on the primary and replica probing is disabled.
//
// The client borrows the handles; Close stops background probing but
// never closes them. The caller owns their lifecycle.
type Client struct {
	primary sqladapter.DB
	replica sqladapter.DB // nil for primary-only mode
	config  *ClientConfig
	lag     *lag.Tracker
	health  *health.Monitor // nil for primary-only mode
	decider *route.Decider
	sleep   func(ctx context.Context, d time.Duration) error
	closed  atomic.Bool
}

// NewClient creates a routing client over the given handles.
//
// The client supports two modes:
//   - Primary-only mode: Pass replica as nil. Every operation executes on
//     the primary; lag tracking still works but never redirects anything.
//   - Primary/replica mode: Pass both handles. Reads route to the replica
//     when it is available and caught up, writes always hit the primary.
//
// When no custom probe is configured, replica liveness is checked by
// pinging the replica handle. With WithBackgroundProbing the prober
// starts immediately and Close stops it.
//
// Parameters:
//   - primary: Primary database handle (required)
//   - replica: Replica database handle (optional, nil for primary-only mode)
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A new routing client
//   - error: ErrNilPrimary if primary is nil, ErrInvalidConfig on bad options
func NewClient(primary, replica sqladapter.DB, opts ...Option) (*Client, error) {
	if primary == nil {
		return nil, types.ErrNilPrimary
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	// Ensure metrics is never nil
	if config.Metrics == nil {
		config.Metrics = metrics.NewNopMetrics()
	}

	// Ensure logger is never nil
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		primary: primary,
		replica: replica,
		config:  config,
		sleep:   sleepContext,
		lag: lag.NewTracker(config.LagThreshold,
			lag.WithNowFunc(config.TimestampProvider),
		),
	}

	if replica == nil {
		client.decider = route.NewDecider(nil, client.lag)

		return client, nil
	}

	probe := config.Probe
	if probe == nil {
		probe = func(ctx context.Context) error {
			return replica.PingContext(ctx)
		}
	}

	client.health = health.NewMonitor(probe,
		health.WithCheckInterval(config.HealthCheckInterval),
		health.WithProbeTimeout(config.ProbeTimeout),
		health.WithNowFunc(config.TimestampProvider),
		health.WithLogger(config.Logger),
		health.WithMetrics(config.Metrics),
		health.WithOnTransition(config.OnTransition),
	)
	client.decider = route.NewDecider(client.health, client.lag)

	if config.BackgroundProbing {
		if err := client.health.Start(); err != nil {
			return nil, err
		}
	}

	return client, nil
}

// NewClientFromDB creates a routing client from standard *sql.DB handles.
//
// This is a convenience constructor that wraps the handles in adapters.
// Pass replica as nil for primary-only mode.
//
// Parameters:
//   - primary: Primary *sql.DB handle (required)
//   - replica: Replica *sql.DB handle (optional, nil for primary-only mode)
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A new routing client
//   - error: ErrNilPrimary if primary is nil
func NewClientFromDB(primary, replica *sql.DB, opts ...Option) (*Client, error) {
	if primary == nil {
		return nil, types.ErrNilPrimary
	}

	var replicaAdapter sqladapter.DB
	if replica != nil {
		replicaAdapter = sqladapter.NewDBAdapter(replica)
	}

	return NewClient(
		sqladapter.NewDBAdapter(primary),
		replicaAdapter,
		opts...,
	)
}

// RunRead executes a read operation against the backend the routing
// decision picks, retrying per the configured policy.
//
// fallbackAllowed controls behavior when the replica is healthy but a
// tracked write may not have replicated yet: true redirects the read to
// the primary for fresh data, false keeps it on the replica and accepts
// staleness. An unavailable replica always redirects to the primary,
// regardless of fallbackAllowed.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - fallbackAllowed: Whether lagging replicas redirect the read to primary
//   - op: The database call to run
//
// Returns:
//   - any: The operation's result
//   - error: ErrClosed on a closed client, the operation's permanent
//     error, an ExhaustedError after too many failures, or a
//     CancelledError if ctx fired mid-retry
func (c *Client) RunRead(ctx context.Context, fallbackAllowed bool, op Operation) (any, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	if op == nil {
		return nil, types.ErrNilOperation
	}

	return c.execute(ctx, types.IntentRead, fallbackAllowed, false, op)
}

// RunWrite executes a write operation against the primary, retrying per
// the configured policy.
//
// trackReplication marks the write in the lag tracker on success, so
// subsequent reads with fallbackAllowed=true hit the primary until the
// replica has plausibly caught up. Pass false for writes whose freshness
// does not matter to readers (audit logs, counters).
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - trackReplication: Whether the write starts a replication window
//   - op: The database call to run
//
// Returns:
//   - any: The operation's result
//   - error: ErrClosed on a closed client, the operation's permanent
//     error, an ExhaustedError after too many failures, or a
//     CancelledError if ctx fired mid-retry
func (c *Client) RunWrite(ctx context.Context, trackReplication bool, op Operation) (any, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	if op == nil {
		return nil, types.ErrNilOperation
	}

	return c.execute(ctx, types.IntentWrite, false, trackReplication, op)
}

// WithSession derives a context with its own isolated lag-tracking
// session and returns a release function.
//
// Writes recorded under the session only affect reads carrying the same
// session context; other callers' reads are not redirected by them. Use
// one session per request or unit of work, and release it when done:
//
//	ctx, done := client.WithSession(ctx)
//	defer done()
//
// Parameters:
//   - ctx: Parent context
//
// Returns:
//   - context.Context: Context carrying the session
//   - func(): Release function that drops the session's tracking state
func (c *Client) WithSession(ctx context.Context) (context.Context, func()) {
	return c.lag.StartSession(ctx)
}

// WithSessionID tags ctx with a caller-chosen lag-tracking session ID.
//
// Most callers should use [Client.WithSession] instead, which mints an
// ID and handles cleanup. WithSessionID suits IDs that already exist,
// like a request or transaction ID propagated across services.
//
// Parameters:
//   - ctx: Parent context
//   - id: The session identifier
//
// Returns:
//   - context.Context: Context carrying the session
func WithSessionID(ctx context.Context, id string) context.Context {
	return lag.WithSessionID(ctx, id)
}

// IsReplicaReady reports whether reads in this context may use the
// replica as far as replication lag is concerned.
//
// It returns false within the lag threshold after a tracked write, and
// always false in primary-only mode. Health is not consulted.
//
// Parameters:
//   - ctx: Context carrying an optional lag-tracking session
//
// Returns:
//   - bool: true when no tracked write is within the replication window
func (c *Client) IsReplicaReady(ctx context.Context) bool {
	if c.replica == nil {
		return false
	}

	return c.lag.ReplicaReady(ctx)
}

// TimeSinceLastWrite returns the elapsed time since the context's most
// recent tracked write.
//
// Returns lag.Forever when no write was ever tracked.
//
// Parameters:
//   - ctx: Context carrying an optional lag-tracking session
//
// Returns:
//   - time.Duration: Elapsed time since the last tracked write
func (c *Client) TimeSinceLastWrite(ctx context.Context) time.Duration {
	return c.lag.SinceLastWrite(ctx)
}

// ResetLagTracking clears the context's write-recency mark, making the
// replica immediately eligible for reads again.
//
// This is an operational and testing hook; production code normally
// lets the window expire on its own.
//
// Parameters:
//   - ctx: Context carrying an optional lag-tracking session
func (c *Client) ResetLagTracking(ctx context.Context) {
	c.lag.Reset(ctx)
}

// ActiveSessions returns the number of live lag-tracking sessions.
func (c *Client) ActiveSessions() int {
	return c.lag.Sessions()
}

// LagThreshold returns the configured replication lag threshold.
func (c *Client) LagThreshold() time.Duration {
	return c.lag.Threshold()
}

// ForceReplicaHealthCheck probes the replica immediately, bypassing the
// throttle, and returns the resulting state.
//
// Concurrent forced checks share a single probe. In primary-only mode
// no probe runs and the state is always unavailable.
//
// Parameters:
//   - ctx: Context for the probe (the probe still runs under its own
//     timeout and is not cancelled by ctx)
//
// Returns:
//   - types.HealthState: The post-probe replica state
func (c *Client) ForceReplicaHealthCheck(ctx context.Context) types.HealthState {
	if c.health == nil {
		c.config.Logger.Warn("replica health check requested in primary-only mode",
			"error", types.ErrNoReplica.Error(),
		)

		return types.HealthUnavailable
	}

	return c.health.ForceCheck(ctx)
}

// IsReplicaAvailable returns the cached replica availability without
// probing. Always false in primary-only mode.
func (c *Client) IsReplicaAvailable() bool {
	if c.health == nil {
		return false
	}

	return c.health.Available()
}

// ReplicaLastChecked returns when the replica was last probed.
//
// The zero time means never probed, including primary-only mode.
func (c *Client) ReplicaLastChecked() time.Time {
	if c.health == nil {
		return time.Time{}
	}

	return c.health.LastChecked()
}

// PingPrimary verifies the primary handle is alive.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - error: ErrClosed on a closed client, otherwise the ping result
func (c *Client) PingPrimary(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	return c.primary.PingContext(ctx)
}

// Events returns the replica transition event channel.
//
// The channel is buffered; when nobody drains it, events are dropped
// rather than blocking the probe path. Returns nil in primary-only mode,
// and receiving from it blocks forever.
func (c *Client) Events() <-chan types.Transition {
	if c.health == nil {
		return nil
	}

	return c.health.Events()
}

// StartProbing launches the background prober.
//
// Unnecessary when the client was built with WithBackgroundProbing.
//
// Returns:
//   - error: ErrClosed on a closed client, ErrNoReplica in primary-only
//     mode, or an error when the prober is already running
func (c *Client) StartProbing() error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if c.health == nil {
		return types.ErrNoReplica
	}

	return c.health.Start()
}

// StopProbing terminates the background prober and waits for it to exit.
// Lazy probing on the read path continues to work.
func (c *Client) StopProbing() {
	if c.health != nil {
		c.health.Stop()
	}
}

// IsPrimaryOnly returns true if the client has no replica configured.
//
// In primary-only mode, all operations execute on the primary and
// replica probing is disabled.
func (c *Client) IsPrimaryOnly() bool {
	return c.replica == nil
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// Close marks the client closed and stops background probing.
//
// The database handles are owned by the caller and stay open; close
// them separately. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	if c.health != nil {
		c.health.Stop()
	}

	return nil
}

// handle returns the database handle for the given target.
// In primary-only mode, always returns primary.
func (c *Client) handle(target types.Target) sqladapter.DB {
	if target == types.TargetReplica && c.replica != nil {
		return c.replica
	}

	return c.primary
}
