package prom

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudbank/tandem/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace sets the metric namespace prefix.
//
// Default: "tandem"
//
// Parameters:
//   - namespace: The namespace to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithNamespace(namespace string) Option {
	return func(c *Collector) {
		c.namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry to register metrics with.
//
// If not provided, the collector creates its own registry. The caller can
// expose it via the Handler method or retrieve it with Registry.
//
// Parameters:
//   - reg: The registry to use
//
// Returns:
//   - Option: A configuration option
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Collector) {
		c.registry = reg
	}
}

// Collector implements types.MetricsCollector using Prometheus client_golang.
//
// Thread-safe for concurrent use.
type Collector struct {
	namespace string
	registry  *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationErrors   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	retriesTotal  *prometheus.CounterVec
	fallbackTotal *prometheus.CounterVec

	probesTotal      *prometheus.CounterVec
	probeDuration    prometheus.Histogram
	replicaAvailable prometheus.Gauge
	failoversTotal   prometheus.Counter
	recoveriesTotal  prometheus.Counter
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new Prometheus-based metrics collector.
//
// Parameters:
//   - opts: Configuration options (e.g., WithNamespace, WithRegistry)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := prom.New(prom.WithNamespace("bankapp"))
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
//	http.Handle("/metrics", collector.Handler())
func New(opts ...Option) *Collector {
	c := &Collector{
		namespace: "tandem",
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	c.initMetrics()

	return c
}

// initMetrics registers all metrics with the configured registry.
func (c *Collector) initMetrics() {
	factory := promauto.With(c.registry)

	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "operations_total",
			Help:      "Total routed database operations",
		},
		[]string{"intent", "target"},
	)

	c.operationErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "operation_errors_total",
			Help:      "Failed operation attempts by error kind",
		},
		[]string{"intent", "target", "kind"},
	)

	c.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Per-attempt operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"intent", "target"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "retries_total",
			Help:      "Retry attempts by intent and attempt number",
		},
		[]string{"intent", "attempt"},
	)

	c.fallbackTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "primary_fallback_total",
			Help:      "Reads redirected to the primary by reason",
		},
		[]string{"reason"},
	)

	c.probesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "probes_total",
			Help:      "Replica health probes by outcome",
		},
		[]string{"outcome"},
	)

	c.probeDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      "probe_duration_seconds",
			Help:      "Replica health probe latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.replicaAvailable = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "replica_available",
			Help:      "Replica availability (1=available, 0=unavailable)",
		},
	)

	c.failoversTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "failovers_total",
			Help:      "Replica transitions from available to unavailable",
		},
	)

	c.recoveriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      "recoveries_total",
			Help:      "Replica transitions from unavailable to available",
		},
	)
}

// Registry returns the Prometheus registry the collector registers with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler that exposes the collector's registry
// in Prometheus format.
//
// Example:
//
//	http.Handle("/metrics", collector.Handler())
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ----------------------
// Operations
// ----------------------

// IncOperation increments the operation counter for the given routing.
func (c *Collector) IncOperation(intent types.Intent, target types.Target) {
	c.operationsTotal.WithLabelValues(intent.String(), target.String()).Inc()
}

// IncOperationError increments the operation error counter.
func (c *Collector) IncOperationError(intent types.Intent, target types.Target, transient bool) {
	kind := "permanent"
	if transient {
		kind = "transient"
	}
	c.operationErrors.WithLabelValues(intent.String(), target.String(), kind).Inc()
}

// ObserveOperationDuration records an operation duration in seconds.
func (c *Collector) ObserveOperationDuration(intent types.Intent, target types.Target, seconds float64) {
	c.operationDuration.WithLabelValues(intent.String(), target.String()).Observe(seconds)
}

// ----------------------
// Retry / Fallback
// ----------------------

// IncRetry increments the retry counter.
//
// The attempt number becomes a label; cardinality is bounded by the
// configured maximum attempts.
func (c *Collector) IncRetry(intent types.Intent, attempt int) {
	c.retriesTotal.WithLabelValues(intent.String(), strconv.Itoa(attempt)).Inc()
}

// IncPrimaryFallback increments the primary fallback counter for the reason.
func (c *Collector) IncPrimaryFallback(reason types.FallbackReason) {
	if reason == types.FallbackNone {
		return
	}
	c.fallbackTotal.WithLabelValues(reason.String()).Inc()
}

// ----------------------
// Replica Health
// ----------------------

// IncProbe increments the probe counter for the outcome.
func (c *Collector) IncProbe(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.probesTotal.WithLabelValues(outcome).Inc()
}

// ObserveProbeDuration records a probe duration in seconds.
func (c *Collector) ObserveProbeDuration(seconds float64) {
	c.probeDuration.Observe(seconds)
}

// SetReplicaAvailable sets the replica availability gauge.
func (c *Collector) SetReplicaAvailable(available bool) {
	if available {
		c.replicaAvailable.Set(1)
	} else {
		c.replicaAvailable.Set(0)
	}
}

// IncFailover increments the counter of available to unavailable transitions.
func (c *Collector) IncFailover() {
	c.failoversTotal.Inc()
}

// IncRecovery increments the counter of unavailable to available transitions.
func (c *Collector) IncRecovery() {
	c.recoveriesTotal.Inc()
}
