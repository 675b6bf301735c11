// Package metrics provides internal metrics utilities for tandem.
package metrics

import "github.com/cloudbank/tandem/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// ----------------------
// Operations
// ----------------------

// IncOperation discards the metric.
func (m *NopMetrics) IncOperation(_ types.Intent, _ types.Target) {}

// IncOperationError discards the metric.
func (m *NopMetrics) IncOperationError(_ types.Intent, _ types.Target, _ bool) {}

// ObserveOperationDuration discards the metric.
func (m *NopMetrics) ObserveOperationDuration(_ types.Intent, _ types.Target, _ float64) {}

// ----------------------
// Retry / Fallback
// ----------------------

// IncRetry discards the metric.
func (m *NopMetrics) IncRetry(_ types.Intent, _ int) {}

// IncPrimaryFallback discards the metric.
func (m *NopMetrics) IncPrimaryFallback(_ types.FallbackReason) {}

// ----------------------
// Replica Health
// ----------------------

// IncProbe discards the metric.
func (m *NopMetrics) IncProbe(_ bool) {}

// ObserveProbeDuration discards the metric.
func (m *NopMetrics) ObserveProbeDuration(_ float64) {}

// SetReplicaAvailable discards the metric.
func (m *NopMetrics) SetReplicaAvailable(_ bool) {}

// IncFailover discards the metric.
func (m *NopMetrics) IncFailover() {}

// IncRecovery discards the metric.
func (m *NopMetrics) IncRecovery() {}
