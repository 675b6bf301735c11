package types

import (
	"errors"
	"strconv"
	"time"
)

// Intent declares whether an operation reads or mutates data.
//
// The caller declares the intent per operation; it is immutable for the
// operation's lifetime and drives the routing decision.
type Intent int

const (
	// IntentRead marks an operation that only reads data.
	IntentRead Intent = iota
	// IntentWrite marks an operation that mutates data.
	IntentWrite
)

// String returns the string representation of the Intent.
func (i Intent) String() string {
	switch i {
	case IntentRead:
		return "read"
	case IntentWrite:
		return "write"
	}

	return "unknown"
}

// Target identifies which backend serves an operation.
type Target int

const (
	// TargetPrimary is the single writable database instance of record.
	TargetPrimary Target = iota
	// TargetReplica is the asynchronously-updated, read-only copy.
	TargetReplica
)

// String returns the string representation of the Target.
func (t Target) String() string {
	switch t {
	case TargetPrimary:
		return "primary"
	case TargetReplica:
		return "replica"
	}

	return "unknown"
}

// HealthState is the cached availability of the replica backend.
type HealthState int

const (
	// HealthAvailable means the last probe succeeded (or none ran yet).
	HealthAvailable HealthState = iota
	// HealthUnavailable means the last probe failed.
	HealthUnavailable
)

// String returns the string representation of the HealthState.
func (s HealthState) String() string {
	switch s {
	case HealthAvailable:
		return "available"
	case HealthUnavailable:
		return "unavailable"
	}

	return "unknown"
}

// FallbackReason explains why a read was routed (or re-routed) to the primary.
type FallbackReason int

const (
	// FallbackNone means no fallback happened; the decision stands on its own.
	FallbackNone FallbackReason = iota
	// FallbackHealth means the replica is marked unavailable.
	FallbackHealth
	// FallbackLag means a recent tracked write has not plausibly replicated yet.
	FallbackLag
	// FallbackError means a replica attempt failed permanently mid-execution.
	FallbackError
)

// String returns the string representation of the FallbackReason.
func (r FallbackReason) String() string {
	switch r {
	case FallbackNone:
		return "none"
	case FallbackHealth:
		return "health"
	case FallbackLag:
		return "lag"
	case FallbackError:
		return "error"
	}

	return "unknown"
}

// Transition records a replica health state change.
//
// Transitions are emitted only on actual state changes: a probe failure
// while already unavailable (or success while available) produces nothing.
type Transition struct {
	// From is the state before the probe.
	From HealthState

	// To is the state after the probe.
	To HealthState

	// At is when the probe completed.
	At time.Time

	// Err is the probe error for a failover transition, nil for a recovery.
	Err error
}

// IsFailover reports whether this transition marks the replica becoming
// unavailable.
func (t Transition) IsFailover() bool {
	return t.From == HealthAvailable && t.To == HealthUnavailable
}

// IsRecovery reports whether this transition marks the replica returning.
func (t Transition) IsRecovery() bool {
	return t.From == HealthUnavailable && t.To == HealthAvailable
}

// String returns a short description for logs.
func (t Transition) String() string {
	if t.IsFailover() {
		return "failover detected"
	}
	if t.IsRecovery() {
		return "recovery detected"
	}

	return t.From.String() + " -> " + t.To.String()
}

// Logger defines the logging interface used throughout tandem.
//
// Methods accept a message and alternating key/value pairs, matching the
// style of structured loggers like zap's SugaredLogger. Implementations
// must be safe for concurrent use.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, args ...any)

	// Info logs an info-level message.
	Info(msg string, args ...any)

	// Warn logs a warning-level message.
	Warn(msg string, args ...any)

	// Error logs an error-level message.
	Error(msg string, args ...any)

	// Fatal logs a fatal-level message. Implementations decide whether to exit.
	Fatal(msg string, args ...any)
}

// Sentinel errors for common failure scenarios.
var (
	// ErrClosed indicates an operation was attempted on a closed client.
	ErrClosed = errors.New("tandem: client is closed")

	// ErrNilPrimary indicates that no primary handle was provided.
	ErrNilPrimary = errors.New("tandem: primary handle cannot be nil")

	// ErrNilOperation indicates a nil operation callback was provided.
	ErrNilOperation = errors.New("tandem: operation cannot be nil")

	// ErrNoReplica indicates a replica-specific action was requested while
	// running in primary-only mode (no replica configured).
	ErrNoReplica = errors.New("tandem: no replica configured")

	// ErrInvalidConfig indicates the client configuration failed validation.
	ErrInvalidConfig = errors.New("tandem: invalid configuration")

	// ErrAttemptsExhausted indicates every retry attempt failed.
	// The returned error is an *ExhaustedError carrying the last failure.
	ErrAttemptsExhausted = errors.New("tandem: retry attempts exhausted")

	// ErrCancelled indicates the caller's context was cancelled while the
	// retry executor was waiting between attempts.
	ErrCancelled = errors.New("tandem: operation cancelled during retry")
)

// ExhaustedError is returned when an operation failed on every allowed
// attempt. It carries the error from the final attempt: the freshest
// evidence of the backend's state, which is what boundary-level
// transient/permanent mapping needs.
type ExhaustedError struct {
	// Attempts is the number of attempts that ran.
	Attempts int

	// Target is where the final attempt executed.
	Target Target

	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return "tandem: " + strconv.Itoa(e.Attempts) + " attempts exhausted on " +
		e.Target.String() + ": " + e.Err.Error()
}

// Unwrap returns the wrapped errors for errors.Is/As compatibility.
// Both ErrAttemptsExhausted and the final attempt's error match.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrAttemptsExhausted, e.Err}
}

// CancelledError is returned when the caller's context fired while the
// retry executor was between attempts (or before an attempt started).
type CancelledError struct {
	// Attempt is the attempt number that was pending when cancellation hit.
	Attempt int

	// Cause is the context error (context.Canceled or context.DeadlineExceeded).
	Cause error

	// LastErr is the most recent operation error, nil if no attempt ran.
	LastErr error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	msg := "tandem: cancelled before attempt " + strconv.Itoa(e.Attempt) +
		": " + e.Cause.Error()
	if e.LastErr != nil {
		msg += " (last error: " + e.LastErr.Error() + ")"
	}

	return msg
}

// Unwrap returns the wrapped errors for errors.Is/As compatibility.
// ErrCancelled, the context cause, and the last operation error all match.
func (e *CancelledError) Unwrap() []error {
	errs := []error{ErrCancelled, e.Cause}
	if e.LastErr != nil {
		errs = append(errs, e.LastErr)
	}

	return errs
}
