// Package types provides shared types and error definitions for the tandem library.
//
// This is a leaf package with zero tandem imports to prevent import cycles.
// All packages in tandem can safely import this package.
//
// # Types
//
// Intent declares what an operation does and Target where it runs:
//
//	const (
//	    IntentRead  Intent = iota // only reads data
//	    IntentWrite               // mutates data
//	)
//
//	const (
//	    TargetPrimary Target = iota // the writable instance of record
//	    TargetReplica               // the lagging read-only copy
//	)
//
// HealthState is the cached replica availability maintained by the health
// monitor, and Transition records an actual state change (failover or
// recovery) with its timestamp and probe error.
//
// # Errors
//
// Sentinel errors are provided for common failure scenarios:
//
//   - ErrClosed: operation attempted on a closed client
//   - ErrNilPrimary: no primary handle was provided
//   - ErrNilOperation: a nil operation callback was provided
//   - ErrNoReplica: replica-specific action in primary-only mode
//   - ErrInvalidConfig: client configuration failed validation
//   - ErrAttemptsExhausted: every retry attempt failed
//   - ErrCancelled: caller cancelled during retry backoff
//
// Structured errors carry detail and match their sentinels through
// multi-error Unwrap:
//
//	var exh *types.ExhaustedError
//	if errors.As(err, &exh) {
//	    log.Printf("gave up after %d attempts: %v", exh.Attempts, exh.Err)
//	}
//	errors.Is(err, types.ErrAttemptsExhausted) // also true
//
// # Interfaces
//
// [Logger] and [MetricsCollector] are the pluggable observability hooks;
// no-op defaults are installed when none are configured.
package types
