// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "tandem":
//
//	collector := vm.New()
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_operations_total{intent="read",target="replica"}
//   - myapp_operation_duration_seconds{intent="write",target="primary"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Operations:
//   - {prefix}_operations_total{intent,target} - Counter of routed operations
//   - {prefix}_operation_errors_total{intent,target,kind} - Counter of failed attempts (kind is transient or permanent)
//   - {prefix}_operation_duration_seconds{intent,target} - Histogram of per-attempt latencies
//
// Retry and fallback:
//   - {prefix}_retries_total{intent} - Counter of retry attempts
//   - {prefix}_primary_fallback_total{reason} - Counter of reads redirected to the primary (reason is health, lag, or error)
//
// Replica health:
//   - {prefix}_probes_total{outcome} - Counter of health probes (outcome is success or failure)
//   - {prefix}_probe_duration_seconds - Histogram of probe latencies
//   - {prefix}_replica_available - Gauge (1=available, 0=unavailable)
//   - {prefix}_failovers_total - Counter of available to unavailable transitions
//   - {prefix}_recoveries_total - Counter of unavailable to available transitions
//
// # Performance Notes
//
// This implementation pre-creates all metrics at initialization time
// using the NewXXX pattern (instead of GetOrCreateXXX) for optimal
// performance in hot paths, as recommended by the VictoriaMetrics
// documentation.
//
// The metrics are registered with a dedicated Set that is registered
// globally, allowing standard Prometheus scraping.
package vm
