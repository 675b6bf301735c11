package route

import (
	"context"

	"github.com/cloudbank/tandem/types"
)

// ReplicaHealth is the availability view the decider consults.
//
// Implemented by health.Monitor: Check returns the cached availability and
// may run a throttled probe, so routing decisions are what keep the health
// state fresh.
type ReplicaHealth interface {
	Check(ctx context.Context) bool
}

// LagState is the write-recency view the decider consults.
//
// Implemented by lag.Tracker: ReplicaReady reports whether the context's
// most recent tracked write has plausibly replicated.
type LagState interface {
	ReplicaReady(ctx context.Context) bool
}

// Decider maps an operation's declared intent plus the current replica
// state to a target backend.
//
// The decision is deterministic given the same inputs. A nil health view
// means no replica is configured and everything routes to the primary.
type Decider struct {
	health ReplicaHealth
	lag    LagState
}

// NewDecider creates a decider over the given state views.
func NewDecider(health ReplicaHealth, lag LagState) *Decider {
	return &Decider{health: health, lag: lag}
}

// Decide returns the target for one attempt of an operation, along with
// the reason when a read was redirected to the primary.
//
// Rules, in order:
//  1. Writes always go to the primary.
//  2. No replica configured: primary.
//  3. Replica unavailable: primary, regardless of fallbackAllowed.
//  4. Replica lagging behind a tracked write: primary when fallbackAllowed,
//     otherwise replica (the caller explicitly accepted stale reads).
//  5. Otherwise: replica.
func (d *Decider) Decide(ctx context.Context, intent types.Intent, fallbackAllowed bool) (types.Target, types.FallbackReason) {
	if intent == types.IntentWrite {
		return types.TargetPrimary, types.FallbackNone
	}

	if d.health == nil {
		return types.TargetPrimary, types.FallbackNone
	}

	if !d.health.Check(ctx) {
		return types.TargetPrimary, types.FallbackHealth
	}

	if d.lag != nil && !d.lag.ReplicaReady(ctx) {
		if fallbackAllowed {
			return types.TargetPrimary, types.FallbackLag
		}

		return types.TargetReplica, types.FallbackNone
	}

	return types.TargetReplica, types.FallbackNone
}
