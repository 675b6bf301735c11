// Package prom provides a Prometheus implementation of the MetricsCollector interface.
//
// This package uses github.com/prometheus/client_golang, the official
// Prometheus client library.
//
// # Basic Usage
//
// Create a collector with default namespace "tandem":
//
//	collector := prom.New()
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
//
// # Custom Namespace and Registry
//
// Use WithNamespace to customize metric names, and WithRegistry to register
// with an existing registry:
//
//	reg := prometheus.NewRegistry()
//	collector := prom.New(
//	    prom.WithNamespace("bankapp"),
//	    prom.WithRegistry(reg),
//	)
//
// # Exposing Metrics
//
// The Handler method returns an http.Handler for the collector's registry:
//
//	http.Handle("/metrics", collector.Handler())
//	http.ListenAndServe(":8080", nil)
//
// # Metrics Provided
//
// Operations:
//   - {ns}_operations_total{intent,target} - Counter of routed operations
//   - {ns}_operation_errors_total{intent,target,kind} - Counter of failed attempts (kind is transient or permanent)
//   - {ns}_operation_duration_seconds{intent,target} - Histogram of per-attempt latencies
//
// Retry and fallback:
//   - {ns}_retries_total{intent,attempt} - Counter of retry attempts
//   - {ns}_primary_fallback_total{reason} - Counter of reads redirected to the primary (reason is health, lag, or error)
//
// Replica health:
//   - {ns}_probes_total{outcome} - Counter of health probes (outcome is success or failure)
//   - {ns}_probe_duration_seconds - Histogram of probe latencies
//   - {ns}_replica_available - Gauge (1=available, 0=unavailable)
//   - {ns}_failovers_total - Counter of available to unavailable transitions
//   - {ns}_recoveries_total - Counter of unavailable to available transitions
//
// # Choosing Between prom and vm
//
// This package and contrib/metrics/vm expose equivalent metric sets. Use
// this package when your application already depends on client_golang or
// needs registry-level integration (custom registries, push gateways).
// Use contrib/metrics/vm for a lighter dependency footprint.
package prom
