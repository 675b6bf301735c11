package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cloudbank/tandem/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "tandem"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for optimal performance.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	// Operation metrics, indexed by [intent][target].
	opTotal    [2][2]*metrics.Counter
	opDuration [2][2]*metrics.Histogram

	// Operation errors, indexed by [intent][target][kind]
	// where kind 0 is permanent and 1 is transient.
	opErrors [2][2][2]*metrics.Counter

	// Retry metrics, indexed by intent.
	retries [2]*metrics.Counter

	// Primary fallback metrics
	fallbackHealth *metrics.Counter
	fallbackLag    *metrics.Counter
	fallbackError  *metrics.Counter

	// Replica health metrics
	probeSuccess     *metrics.Counter
	probeFailure     *metrics.Counter
	probeDuration    *metrics.Histogram
	replicaAvailable atomic.Int64
	failovers        *metrics.Counter
	recoveries       *metrics.Counter
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
// All metrics are pre-created at initialization for optimal performance.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "tandem",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// intentIdx maps an intent to its metric array index.
func intentIdx(intent types.Intent) int {
	if intent == types.IntentWrite {
		return 1
	}

	return 0
}

// targetIdx maps a target to its metric array index.
func targetIdx(target types.Target) int {
	if target == types.TargetReplica {
		return 1
	}

	return 0
}

// initMetrics pre-creates all metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix
	intents := []types.Intent{types.IntentRead, types.IntentWrite}
	targets := []types.Target{types.TargetPrimary, types.TargetReplica}

	// Operation metrics
	for _, intent := range intents {
		for _, target := range targets {
			in := intentIdx(intent)
			tg := targetIdx(target)
			c.opTotal[in][tg] = c.set.NewCounter(
				fmt.Sprintf(`%s_operations_total{intent="%s",target="%s"}`, p, intent, target))
			c.opDuration[in][tg] = c.set.NewHistogram(
				fmt.Sprintf(`%s_operation_duration_seconds{intent="%s",target="%s"}`, p, intent, target))
			c.opErrors[in][tg][0] = c.set.NewCounter(
				fmt.Sprintf(`%s_operation_errors_total{intent="%s",target="%s",kind="permanent"}`, p, intent, target))
			c.opErrors[in][tg][1] = c.set.NewCounter(
				fmt.Sprintf(`%s_operation_errors_total{intent="%s",target="%s",kind="transient"}`, p, intent, target))
		}
	}

	// Retry metrics
	for _, intent := range intents {
		c.retries[intentIdx(intent)] = c.set.NewCounter(
			fmt.Sprintf(`%s_retries_total{intent="%s"}`, p, intent))
	}

	// Primary fallback metrics
	c.fallbackHealth = c.set.NewCounter(fmt.Sprintf(`%s_primary_fallback_total{reason="health"}`, p))
	c.fallbackLag = c.set.NewCounter(fmt.Sprintf(`%s_primary_fallback_total{reason="lag"}`, p))
	c.fallbackError = c.set.NewCounter(fmt.Sprintf(`%s_primary_fallback_total{reason="error"}`, p))

	// Replica health metrics
	c.probeSuccess = c.set.NewCounter(fmt.Sprintf(`%s_probes_total{outcome="success"}`, p))
	c.probeFailure = c.set.NewCounter(fmt.Sprintf(`%s_probes_total{outcome="failure"}`, p))
	c.probeDuration = c.set.NewHistogram(fmt.Sprintf(`%s_probe_duration_seconds`, p))
	c.set.NewGauge(fmt.Sprintf(`%s_replica_available`, p), func() float64 {
		return float64(c.replicaAvailable.Load())
	})
	c.failovers = c.set.NewCounter(fmt.Sprintf(`%s_failovers_total`, p))
	c.recoveries = c.set.NewCounter(fmt.Sprintf(`%s_recoveries_total`, p))
}

// Set returns the metrics set the collector registers with.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Operations
// ----------------------

// IncOperation increments the operation counter for the given routing.
func (c *Collector) IncOperation(intent types.Intent, target types.Target) {
	c.opTotal[intentIdx(intent)][targetIdx(target)].Inc()
}

// IncOperationError increments the operation error counter.
func (c *Collector) IncOperationError(intent types.Intent, target types.Target, transient bool) {
	kind := 0
	if transient {
		kind = 1
	}
	c.opErrors[intentIdx(intent)][targetIdx(target)][kind].Inc()
}

// ObserveOperationDuration records an operation duration in seconds.
func (c *Collector) ObserveOperationDuration(intent types.Intent, target types.Target, seconds float64) {
	c.opDuration[intentIdx(intent)][targetIdx(target)].Update(seconds)
}

// ----------------------
// Retry / Fallback
// ----------------------

// IncRetry increments the retry counter for the intent.
//
// The attempt number is intentionally not used as a label to keep metric
// cardinality fixed.
func (c *Collector) IncRetry(intent types.Intent, _ int) {
	c.retries[intentIdx(intent)].Inc()
}

// IncPrimaryFallback increments the primary fallback counter for the reason.
func (c *Collector) IncPrimaryFallback(reason types.FallbackReason) {
	switch reason {
	case types.FallbackHealth:
		c.fallbackHealth.Inc()
	case types.FallbackLag:
		c.fallbackLag.Inc()
	case types.FallbackError:
		c.fallbackError.Inc()
	case types.FallbackNone:
	}
}

// ----------------------
// Replica Health
// ----------------------

// IncProbe increments the probe counter for the outcome.
func (c *Collector) IncProbe(success bool) {
	if success {
		c.probeSuccess.Inc()
	} else {
		c.probeFailure.Inc()
	}
}

// ObserveProbeDuration records a probe duration in seconds.
func (c *Collector) ObserveProbeDuration(seconds float64) {
	c.probeDuration.Update(seconds)
}

// SetReplicaAvailable sets the replica availability gauge.
func (c *Collector) SetReplicaAvailable(available bool) {
	val := int64(0)
	if available {
		val = 1
	}
	c.replicaAvailable.Store(val)
}

// IncFailover increments the counter of available to unavailable transitions.
func (c *Collector) IncFailover() {
	c.failovers.Inc()
}

// IncRecovery increments the counter of unavailable to available transitions.
func (c *Collector) IncRecovery() {
	c.recoveries.Inc()
}
