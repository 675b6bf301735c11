package types

// MetricsCollector defines methods for collecting operational metrics.
//
// Methods are labeled by Intent and Target where that distinction matters.
// Implementations should be thread-safe as methods may be called concurrently.
//
// Example usage with Prometheus (via contrib/metrics/prom):
//
//	import prommetrics "github.com/cloudbank/tandem/contrib/metrics/prom"
//
//	collector := prommetrics.New(prommetrics.WithNamespace("myapp"))
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
type MetricsCollector interface {
	// ----------------------
	// Operations
	// ----------------------

	// IncOperation increments the operation counter for the given routing.
	IncOperation(intent Intent, target Target)

	// IncOperationError increments the operation error counter.
	// transient reflects the classifier's verdict on the error.
	IncOperationError(intent Intent, target Target, transient bool)

	// ObserveOperationDuration records one attempt's duration in seconds.
	// Attempts are observed individually since retries may move between
	// targets; backoff sleeps are not included.
	ObserveOperationDuration(intent Intent, target Target, seconds float64)

	// ----------------------
	// Retry / Fallback
	// ----------------------

	// IncRetry increments the retry counter. attempt is the attempt number
	// that failed and triggered the retry (1-based).
	IncRetry(intent Intent, attempt int)

	// IncPrimaryFallback increments the counter of reads redirected to the
	// primary, labeled by the reason (health, lag, error).
	IncPrimaryFallback(reason FallbackReason)

	// ----------------------
	// Replica Health
	// ----------------------

	// IncProbe increments the probe counter, labeled by outcome.
	IncProbe(success bool)

	// ObserveProbeDuration records a probe duration in seconds.
	ObserveProbeDuration(seconds float64)

	// SetReplicaAvailable sets the replica availability gauge (1 or 0).
	SetReplicaAvailable(available bool)

	// IncFailover increments the counter of available to unavailable
	// transitions.
	IncFailover()

	// IncRecovery increments the counter of unavailable to available
	// transitions.
	IncRecovery()
}
