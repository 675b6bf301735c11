package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudbank/tandem/test/simulation/types"
)

// ReplicaOutage simulates a complete replica failure.
type ReplicaOutage struct{}

func (s *ReplicaOutage) Name() string {
	return "replica-outage"
}

func (s *ReplicaOutage) Description() string {
	return "Simulates complete replica failure to verify reads fail over to the primary"
}

func (s *ReplicaOutage) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting ReplicaOutage scenario")
	startMisses := env.Tracker.FreshMisses()
	startCount := env.Tracker.Count()

	// 1. Baseline: normal operation
	env.Logger.Info("Phase 1: Normal operation")
	_ = waitUntil(ctx, 5*time.Second, func() bool {
		return env.Tracker.Count() > startCount
	})

	// 2. Kill the replica
	env.Logger.Info("Phase 2: Killing the replica")
	env.Chaos.SetErrorRate(1.0)
	env.Client.ForceReplicaHealthCheck(ctx)

	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return !env.Client.IsReplicaAvailable()
	}); err != nil {
		return fmt.Errorf("replica was never marked unavailable: %w", err)
	}

	// 3. Primary carries the whole workload
	env.Logger.Info("Phase 3: Primary serving all traffic")
	outageCount := env.Tracker.Count()
	if err := waitUntil(ctx, 15*time.Second, func() bool {
		return env.Tracker.Count() >= outageCount+100
	}); err != nil {
		return fmt.Errorf("writes stalled during the outage: %w", err)
	}

	// 4. Recovery
	env.Logger.Info("Phase 4: Recovering the replica")
	env.Chaos.Reset()
	env.Client.ForceReplicaHealthCheck(ctx)

	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return env.Client.IsReplicaAvailable()
	}); err != nil {
		return fmt.Errorf("replica never recovered: %w", err)
	}

	if misses := env.Tracker.FreshMisses() - startMisses; misses > 0 {
		return fmt.Errorf("%d fresh reads missed their writes during the outage", misses)
	}

	env.Logger.Info("ReplicaOutage scenario completed")

	return nil
}
