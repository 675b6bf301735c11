package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/cloudbank/tandem/types"
)

// opKey identifies an intent/target pair in metric maps.
type opKey struct {
	intent types.Intent
	target types.Target
}

// errKey identifies an intent/target/kind triple in the error map.
type errKey struct {
	intent    types.Intent
	target    types.Target
	transient bool
}

// TestMetricsCollector is a types.MetricsCollector that records calls for
// assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	operations map[opKey]int64
	errors     map[errKey]int64
	durations  map[opKey][]float64

	retries   map[types.Intent]int64
	fallbacks map[types.FallbackReason]int64

	probeSuccess   int64
	probeFailure   int64
	probeDurations []float64

	replicaAvailable bool
	availabilitySets int64

	failovers  atomic.Int64
	recoveries atomic.Int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates an empty recording collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		operations: make(map[opKey]int64),
		errors:     make(map[errKey]int64),
		durations:  make(map[opKey][]float64),
		retries:    make(map[types.Intent]int64),
		fallbacks:  make(map[types.FallbackReason]int64),
	}
}

// ----------------------
// Operations
// ----------------------

func (m *TestMetricsCollector) IncOperation(intent types.Intent, target types.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[opKey{intent, target}]++
}

func (m *TestMetricsCollector) IncOperationError(intent types.Intent, target types.Target, transient bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[errKey{intent, target, transient}]++
}

func (m *TestMetricsCollector) ObserveOperationDuration(intent types.Intent, target types.Target, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := opKey{intent, target}
	m.durations[key] = append(m.durations[key], seconds)
}

// ----------------------
// Retry / Fallback
// ----------------------

func (m *TestMetricsCollector) IncRetry(intent types.Intent, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[intent]++
}

func (m *TestMetricsCollector) IncPrimaryFallback(reason types.FallbackReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[reason]++
}

// ----------------------
// Replica Health
// ----------------------

func (m *TestMetricsCollector) IncProbe(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.probeSuccess++
	} else {
		m.probeFailure++
	}
}

func (m *TestMetricsCollector) ObserveProbeDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeDurations = append(m.probeDurations, seconds)
}

func (m *TestMetricsCollector) SetReplicaAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicaAvailable = available
	m.availabilitySets++
}

func (m *TestMetricsCollector) IncFailover() {
	m.failovers.Add(1)
}

func (m *TestMetricsCollector) IncRecovery() {
	m.recoveries.Add(1)
}

// ----------------------
// Test Helpers
// ----------------------

// GetOperations returns the operation count for an intent/target pair.
func (m *TestMetricsCollector) GetOperations(intent types.Intent, target types.Target) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.operations[opKey{intent, target}]
}

// GetOperationErrors returns the error count for an intent/target/kind triple.
func (m *TestMetricsCollector) GetOperationErrors(intent types.Intent, target types.Target, transient bool) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.errors[errKey{intent, target, transient}]
}

// GetDurations returns the recorded durations for an intent/target pair.
func (m *TestMetricsCollector) GetDurations(intent types.Intent, target types.Target) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]float64(nil), m.durations[opKey{intent, target}]...)
}

// GetRetries returns the retry count for an intent.
func (m *TestMetricsCollector) GetRetries(intent types.Intent) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.retries[intent]
}

// GetFallbacks returns the fallback count for a reason.
func (m *TestMetricsCollector) GetFallbacks(reason types.FallbackReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.fallbacks[reason]
}

// GetProbes returns the probe count for an outcome.
func (m *TestMetricsCollector) GetProbes(success bool) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if success {
		return m.probeSuccess
	}

	return m.probeFailure
}

// LastReplicaAvailable returns the most recent availability gauge value and
// whether it was ever set.
func (m *TestMetricsCollector) LastReplicaAvailable() (available, set bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.replicaAvailable, m.availabilitySets > 0
}

// GetFailovers returns the failover transition count.
func (m *TestMetricsCollector) GetFailovers() int64 {
	return m.failovers.Load()
}

// GetRecoveries returns the recovery transition count.
func (m *TestMetricsCollector) GetRecoveries() int64 {
	return m.recoveries.Load()
}

// Reset clears all recorded metrics.
func (m *TestMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations = make(map[opKey]int64)
	m.errors = make(map[errKey]int64)
	m.durations = make(map[opKey][]float64)
	m.retries = make(map[types.Intent]int64)
	m.fallbacks = make(map[types.FallbackReason]int64)
	m.probeSuccess = 0
	m.probeFailure = 0
	m.probeDurations = nil
	m.replicaAvailable = false
	m.availabilitySets = 0

	m.failovers.Store(0)
	m.recoveries.Store(0)
}
