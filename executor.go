package tandem

import (
	"context"
	"time"

	"github.com/cloudbank/tandem/classify"
	"github.com/cloudbank/tandem/types"
)

// targetKeyType is the context key type for the chosen target.
type targetKeyType struct{}

var targetKey targetKeyType

// TargetFromContext reports which backend the current attempt is running
// against. It only yields a value inside an [Operation] invoked by the
// client.
//
// Parameters:
//   - ctx: The context passed to the operation
//
// Returns:
//   - types.Target: The backend of the current attempt
//   - bool: false when ctx did not come from a routed operation
func TargetFromContext(ctx context.Context) (types.Target, bool) {
	target, ok := ctx.Value(targetKey).(types.Target)

	return target, ok
}

// execute runs op under the retry policy, re-deciding the target before
// every attempt.
//
// Absorbed errors are logged at Warn and the freshest one is carried into
// the terminal ExhaustedError, since the latest failure best reflects the
// backend's current condition.
func (c *Client) execute(ctx context.Context, intent types.Intent, fallbackAllowed, trackReplication bool, op Operation) (any, error) {
	policy := c.config.Retry

	// Set once a permanent replica failure redirects this invocation to
	// the primary; never unset for the remaining attempts.
	forcedPrimary := false

	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &types.CancelledError{Attempt: attempt, Cause: err, LastErr: lastErr}
		}

		target, reason := c.decide(ctx, intent, fallbackAllowed, forcedPrimary)
		if reason != types.FallbackNone {
			c.config.Metrics.IncPrimaryFallback(reason)
		}
		if attempt > 1 {
			c.config.Metrics.IncRetry(intent, attempt)
		}

		opCtx := context.WithValue(ctx, targetKey, target)

		start := time.Now()
		result, err := op(opCtx, c.handle(target))
		elapsed := time.Since(start).Seconds()

		c.config.Metrics.IncOperation(intent, target)
		c.config.Metrics.ObserveOperationDuration(intent, target, elapsed)

		if err == nil {
			if intent == types.IntentWrite && trackReplication {
				c.lag.RecordWrite(ctx)
			}

			return result, nil
		}

		transient := classify.Transient(err)
		c.config.Metrics.IncOperationError(intent, target, transient)
		lastErr = err

		if attempt >= policy.MaxAttempts {
			c.config.Logger.Error("operation failed, attempts exhausted",
				"intent", intent.String(),
				"target", target.String(),
				"attempts", attempt,
				"error", err.Error(),
			)

			return nil, &types.ExhaustedError{Attempts: attempt, Target: target, Err: err}
		}

		if transient {
			c.config.Logger.Warn("operation failed, backing off before retry",
				"intent", intent.String(),
				"target", target.String(),
				"attempt", attempt,
				"delay", policy.Delay(attempt).String(),
				"error", err.Error(),
			)

			if sleepErr := c.sleep(ctx, policy.Delay(attempt)); sleepErr != nil {
				return nil, &types.CancelledError{Attempt: attempt, Cause: sleepErr, LastErr: lastErr}
			}

			continue
		}

		// Permanent error on a replica read: redirect the rest of this
		// invocation to the primary and retry immediately, no backoff.
		if intent == types.IntentRead && target == types.TargetReplica {
			forcedPrimary = true

			c.config.Logger.Warn("replica read failed permanently, retrying on primary",
				"attempt", attempt,
				"error", err.Error(),
			)

			continue
		}

		// Permanent error on a write or already on the primary: nothing
		// left to fall back to.
		return nil, err
	}
}

// decide picks the target for one attempt.
//
// A forced invocation routes straight to the primary without consulting
// health or lag; the decider would otherwise wait out the probe throttle
// before noticing the replica is gone.
func (c *Client) decide(ctx context.Context, intent types.Intent, fallbackAllowed, forcedPrimary bool) (types.Target, types.FallbackReason) {
	if forcedPrimary {
		return types.TargetPrimary, types.FallbackError
	}

	return c.decider.Decide(ctx, intent, fallbackAllowed)
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
