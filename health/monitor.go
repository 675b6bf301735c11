package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cloudbank/tandem/internal/logging"
	"github.com/cloudbank/tandem/internal/metrics"
	"github.com/cloudbank/tandem/types"
)

const (
	// DefaultCheckInterval is the minimum time between read-path probes.
	DefaultCheckInterval = 5 * time.Second

	// DefaultProbeTimeout bounds a single probe execution.
	DefaultProbeTimeout = 5 * time.Second

	// eventBufferSize is the capacity of the transition event channel.
	eventBufferSize = 16
)

// Probe checks replica liveness. A nil return means healthy.
//
// Implementations should be cheap (a trivial round-trip such as PingContext
// or SELECT 1); the monitor enforces its own timeout around each call.
type Probe func(ctx context.Context) error

// Monitor caches replica availability and throttles how often the probe
// runs.
//
// The state machine has two states, AVAILABLE (initial) and UNAVAILABLE.
// A probe failure while available emits a failover transition; a probe
// success while unavailable emits a recovery. Same-state probe results are
// no-ops. Only one probe executes at a time: throttled checks elect a
// single winner per interval and forced checks share any in-flight probe.
type Monitor struct {
	probe        Probe
	intervalMs   int64
	timeout      time.Duration
	now          func() int64
	logger       types.Logger
	metrics      types.MetricsCollector
	onTransition func(types.Transition)

	available   atomic.Bool
	lastChecked atomic.Int64 // unix milli, 0 = never probed
	group       singleflight.Group
	events      chan types.Transition

	running atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithCheckInterval sets the minimum time between throttled probes.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.intervalMs = d.Milliseconds()
		}
	}
}

// WithProbeTimeout bounds each probe execution.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger for transition and probe events.
func WithLogger(l types.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c types.MetricsCollector) Option {
	return func(m *Monitor) {
		if c != nil {
			m.metrics = c
		}
	}
}

// WithNowFunc overrides the clock. now must return unix milliseconds.
func WithNowFunc(now func() int64) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithOnTransition registers a callback invoked synchronously on every
// state change, after metrics and logging. The callback must not block.
func WithOnTransition(fn func(types.Transition)) Option {
	return func(m *Monitor) {
		m.onTransition = fn
	}
}

// NewMonitor creates a monitor around the given probe.
//
// The initial state is AVAILABLE; the first failed probe flips it. A nil
// probe always reports healthy, which effectively disables monitoring.
func NewMonitor(probe Probe, opts ...Option) *Monitor {
	if probe == nil {
		probe = func(context.Context) error { return nil }
	}

	m := &Monitor{
		probe:      probe,
		intervalMs: DefaultCheckInterval.Milliseconds(),
		timeout:    DefaultProbeTimeout,
		now:        func() int64 { return time.Now().UnixMilli() },
		logger:     logging.NewNopLogger(),
		metrics:    metrics.NewNopMetrics(),
		events:     make(chan types.Transition, eventBufferSize),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.available.Store(true)
	m.metrics.SetReplicaAvailable(true)

	return m
}

// Available returns the cached availability without probing.
func (m *Monitor) Available() bool {
	return m.available.Load()
}

// State returns the cached state without probing.
func (m *Monitor) State() types.HealthState {
	if m.available.Load() {
		return types.HealthAvailable
	}

	return types.HealthUnavailable
}

// LastChecked returns when a probe last started, or the zero time if none
// has run yet.
func (m *Monitor) LastChecked() time.Time {
	ms := m.lastChecked.Load()
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// ProbeDue reports whether the throttle window has elapsed, without
// claiming it. The next Check will probe iff this is true.
func (m *Monitor) ProbeDue() bool {
	last := m.lastChecked.Load()

	return last == 0 || m.now()-last >= m.intervalMs
}

// Check returns the replica availability, probing first when the throttle
// window has elapsed.
//
// Under concurrent callers at most one probe runs per window: callers race
// on a compare-and-swap of the last-checked timestamp, the winner probes,
// and everyone else returns the cached state immediately without blocking.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.claimProbe() {
		m.sharedProbe(ctx)
	}

	return m.available.Load()
}

// ForceCheck bypasses the throttle and probes immediately, returning the
// resulting state. Concurrent forced checks share a single in-flight probe.
func (m *Monitor) ForceCheck(ctx context.Context) types.HealthState {
	m.sharedProbe(ctx)

	return m.State()
}

// claimProbe atomically claims the current throttle window. Exactly one
// caller per window wins.
func (m *Monitor) claimProbe() bool {
	now := m.now()
	last := m.lastChecked.Load()
	if last != 0 && now-last < m.intervalMs {
		return false
	}

	return m.lastChecked.CompareAndSwap(last, now)
}

// sharedProbe funnels every probe through one singleflight key so a
// throttled probe and a forced probe can never run concurrently.
func (m *Monitor) sharedProbe(ctx context.Context) {
	m.group.Do("replica", func() (any, error) {
		m.runProbe(ctx)

		return nil, nil
	})
}

// runProbe executes one probe and applies the resulting transition.
//
// The probe runs detached from the caller's cancellation under its own
// timeout: a read with a short deadline must not convert its own hurry
// into a replica failover.
func (m *Monitor) runProbe(ctx context.Context) {
	m.lastChecked.Store(m.now())

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	start := time.Now()
	err := m.safeProbe(probeCtx)
	m.metrics.ObserveProbeDuration(time.Since(start).Seconds())
	m.metrics.IncProbe(err == nil)

	m.apply(err)
}

// safeProbe invokes the probe, converting a panic into a failure.
// Probe problems are health observations, never caller-visible errors.
func (m *Monitor) safeProbe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tandem: health probe panicked: %v", r)
		}
	}()

	return m.probe(ctx)
}

// apply updates the cached state and emits a transition on actual change.
func (m *Monitor) apply(probeErr error) {
	healthy := probeErr == nil
	was := m.available.Swap(healthy)
	if was == healthy {
		if !healthy {
			m.logger.Debug("replica still unavailable", "error", probeErr)
		}

		return
	}

	tr := types.Transition{
		From: stateOf(was),
		To:   stateOf(healthy),
		At:   time.UnixMilli(m.now()),
		Err:  probeErr,
	}

	m.metrics.SetReplicaAvailable(healthy)
	if tr.IsFailover() {
		m.metrics.IncFailover()
		m.logger.Warn("replica failover detected, routing reads to primary", "error", probeErr)
	} else {
		m.metrics.IncRecovery()
		m.logger.Info("replica recovered, resuming replica reads")
	}

	if m.onTransition != nil {
		m.onTransition(tr)
	}

	select {
	case m.events <- tr:
	default:
		// Nobody is draining; drop rather than block the probe path.
	}
}

// Events returns the transition event channel.
//
// The channel is buffered and shared across callers; a single consumer
// should drain it. When nobody drains, events are dropped, never blocking.
func (m *Monitor) Events() <-chan types.Transition {
	return m.events
}

// ----------------------
// Background prober
// ----------------------

// Start launches the background prober, which probes every check interval
// so reads never pay probe latency inline.
//
// Returns an error if the monitor is already running or was stopped.
func (m *Monitor) Start() error {
	if m.stopped.Load() {
		return errors.New("tandem: health monitor already stopped")
	}
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("tandem: health monitor already running")
	}

	m.wg.Go(m.loop)

	return nil
}

// Stop terminates the background prober and waits for it to exit.
// A stopped monitor still serves Check and ForceCheck; only the background
// loop is terminal.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	m.stopped.Store(true)
	close(m.stopCh)
	m.wg.Wait()
}

// IsRunning returns whether the background prober is active.
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

func (m *Monitor) loop() {
	interval := time.Duration(m.intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sharedProbe(context.Background())
		}
	}
}

func stateOf(available bool) types.HealthState {
	if available {
		return types.HealthAvailable
	}

	return types.HealthUnavailable
}
