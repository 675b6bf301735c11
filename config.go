package tandem

import (
	"fmt"
	"time"

	"github.com/cloudbank/tandem/health"
	"github.com/cloudbank/tandem/internal/logging"
	"github.com/cloudbank/tandem/internal/metrics"
	"github.com/cloudbank/tandem/lag"
	"github.com/cloudbank/tandem/types"
)

// Default configuration values.
//
// These mirror the most common production settings: a 100ms replication
// window, probes throttled to one per five seconds, and three attempts
// with linear backoff starting at 100ms.
const (
	DefaultLagThreshold        = lag.DefaultThreshold
	DefaultHealthCheckInterval = health.DefaultCheckInterval
	DefaultProbeTimeout        = health.DefaultProbeTimeout
	DefaultMaxAttempts         = 3
	DefaultRetryBaseDelay      = 100 * time.Millisecond
)

// TimestampProvider generates timestamps for lag tracking and probe
// throttling.
//
// The default provider uses time.Now().UnixMilli().
type TimestampProvider func() int64

// DefaultTimestampProvider returns the current time in milliseconds.
func DefaultTimestampProvider() int64 {
	return time.Now().UnixMilli()
}

// RetryPolicy bounds how many times an operation is attempted and how
// long to back off between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to produce the
	// backoff before the next attempt: BaseDelay, 2*BaseDelay, and so on.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns the default retry policy: 3 attempts with
// linear backoff of 100ms, 200ms between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
	}
}

// Delay returns the backoff to apply after the given attempt fails.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

// ClientConfig holds configuration for the routing client.
type ClientConfig struct {
	// LagThreshold is how long after a tracked write the replica is
	// presumed to be catching up. Zero means DefaultLagThreshold.
	LagThreshold time.Duration

	// HealthCheckInterval is the minimum spacing between replica
	// probes triggered by routing decisions (and the background prober
	// period). Zero means DefaultHealthCheckInterval.
	HealthCheckInterval time.Duration

	// ProbeTimeout bounds a single probe invocation. Zero means
	// DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// Retry bounds per-operation attempts and backoff. Zero fields
	// take defaults.
	Retry RetryPolicy

	// Probe checks replica liveness. When nil, the client pings the
	// replica handle.
	Probe health.Probe

	// BackgroundProbing starts a background prober on client creation
	// so reads never pay probe latency inline.
	BackgroundProbing bool

	// OnTransition is invoked synchronously on every replica
	// availability change.
	OnTransition func(types.Transition)

	TimestampProvider TimestampProvider
	Metrics           MetricsCollector
	Logger            types.Logger
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Defaults:
//   - LagThreshold: 100ms
//   - HealthCheckInterval: 5s
//   - ProbeTimeout: 5s
//   - Retry: 3 attempts, 100ms base delay
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		LagThreshold:        DefaultLagThreshold,
		HealthCheckInterval: DefaultHealthCheckInterval,
		ProbeTimeout:        DefaultProbeTimeout,
		Retry:               DefaultRetryPolicy(),
		TimestampProvider:   DefaultTimestampProvider,
		Metrics:             metrics.NewNopMetrics(),
		Logger:              logging.NewNopLogger(),
	}
}

// Validate normalizes zero values to defaults and rejects negative ones.
//
// Returns:
//   - error: wraps types.ErrInvalidConfig naming the offending field
func (c *ClientConfig) Validate() error {
	switch {
	case c.LagThreshold < 0:
		return fmt.Errorf("%w: lag threshold must not be negative, got %v", types.ErrInvalidConfig, c.LagThreshold)
	case c.HealthCheckInterval < 0:
		return fmt.Errorf("%w: health check interval must not be negative, got %v", types.ErrInvalidConfig, c.HealthCheckInterval)
	case c.ProbeTimeout < 0:
		return fmt.Errorf("%w: probe timeout must not be negative, got %v", types.ErrInvalidConfig, c.ProbeTimeout)
	case c.Retry.MaxAttempts < 0:
		return fmt.Errorf("%w: max attempts must not be negative, got %d", types.ErrInvalidConfig, c.Retry.MaxAttempts)
	case c.Retry.BaseDelay < 0:
		return fmt.Errorf("%w: retry base delay must not be negative, got %v", types.ErrInvalidConfig, c.Retry.BaseDelay)
	}

	if c.LagThreshold == 0 {
		c.LagThreshold = DefaultLagThreshold
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.TimestampProvider == nil {
		c.TimestampProvider = DefaultTimestampProvider
	}

	return nil
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithLagThreshold sets how long after a tracked write reads treat the
// replica as still catching up.
//
// Parameters:
//   - d: The replication window (default 100ms)
//
// Returns:
//   - Option: Configuration option
func WithLagThreshold(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.LagThreshold = d
	}
}

// WithHealthCheckInterval sets the minimum spacing between replica probes.
//
// Routing decisions trigger at most one probe per interval; the rest
// reuse the cached availability.
//
// Parameters:
//   - d: The probe spacing (default 5s)
//
// Returns:
//   - Option: Configuration option
func WithHealthCheckInterval(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.HealthCheckInterval = d
	}
}

// WithProbeTimeout bounds a single probe invocation.
//
// Parameters:
//   - d: The probe deadline (default 5s)
//
// Returns:
//   - Option: Configuration option
func WithProbeTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ProbeTimeout = d
	}
}

// WithRetryPolicy sets the per-operation retry policy.
//
// Parameters:
//   - policy: Attempt bound and backoff base (zero fields take defaults)
//
// Returns:
//   - Option: Configuration option
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *ClientConfig) {
		c.Retry = policy
	}
}

// WithProbe sets a custom replica liveness probe.
//
// If not set, the client probes by pinging the replica handle. Use a
// custom probe to run a cheap round-trip query instead:
//
//	tandem.WithProbe(func(ctx context.Context) error {
//	    var one int
//	    return replica.QueryRowContext(ctx, "SELECT 1").Scan(&one)
//	})
//
// Parameters:
//   - probe: The liveness check
//
// Returns:
//   - Option: Configuration option
func WithProbe(probe health.Probe) Option {
	return func(c *ClientConfig) {
		c.Probe = probe
	}
}

// WithBackgroundProbing starts a background prober on client creation.
//
// Without it, probes run lazily on the read path, throttled to one per
// health check interval. With it, the replica is probed every interval
// regardless of traffic, so the first read after an idle period does not
// pay probe latency. Ignored in primary-only mode.
//
// Returns:
//   - Option: Configuration option
func WithBackgroundProbing() Option {
	return func(c *ClientConfig) {
		c.BackgroundProbing = true
	}
}

// WithOnTransition registers a callback invoked synchronously on every
// replica availability change, after metrics and logging.
//
// The callback must not block; slow work should be handed off.
//
// Parameters:
//   - fn: Function called with each failover or recovery transition
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	tandem.WithOnTransition(func(tr tandem.Transition) {
//	    if tr.IsFailover() {
//	        alerting.Page("replica lost", tr.Err)
//	    }
//	})
func WithOnTransition(fn func(types.Transition)) Option {
	return func(c *ClientConfig) {
		c.OnTransition = fn
	}
}

// WithTimestampProvider sets the timestamp generator used for lag
// tracking and probe throttling.
//
// Parameters:
//   - fn: Function that returns current timestamp in milliseconds
//
// Returns:
//   - Option: Configuration option
func WithTimestampProvider(fn TimestampProvider) Option {
	return func(c *ClientConfig) {
		c.TimestampProvider = fn
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration or
// contrib/metrics/prom.New() for Prometheus.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	import vmmetrics "github.com/cloudbank/tandem/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// Use contrib/logging/zaplog to adapt a zap logger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	logger, _ := zaplog.NewProduction()
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithLogger(logger),
//	)
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}
