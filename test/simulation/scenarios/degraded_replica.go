package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudbank/tandem/test/simulation/types"
)

// DegradedReplica simulates a replica that is up but too slow to serve.
type DegradedReplica struct{}

func (s *DegradedReplica) Name() string {
	return "degraded-replica"
}

func (s *DegradedReplica) Description() string {
	return "Injects high replica latency to verify probe timeouts push reads to the primary"
}

func (s *DegradedReplica) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting DegradedReplica scenario")
	startCount := env.Tracker.Count()

	// 1. Baseline: normal operation
	env.Logger.Info("Phase 1: Normal operation")
	_ = waitUntil(ctx, 5*time.Second, func() bool {
		return env.Tracker.Count() > startCount
	})

	// 2. Inject latency well beyond the probe timeout
	env.Logger.Info("Phase 2: Injecting latency into the replica")
	env.Chaos.SetLatency(500 * time.Millisecond)
	env.Client.ForceReplicaHealthCheck(ctx)

	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return !env.Client.IsReplicaAvailable()
	}); err != nil {
		return fmt.Errorf("slow replica was never marked unavailable: %w", err)
	}

	// 3. Workload continues against the primary
	env.Logger.Info("Phase 3: Verifying the workload continues")
	degradedCount := env.Tracker.Count()
	if err := waitUntil(ctx, 15*time.Second, func() bool {
		return env.Tracker.Count() >= degradedCount+100
	}); err != nil {
		return fmt.Errorf("writes stalled while the replica was degraded: %w", err)
	}

	// 4. Recovery
	env.Logger.Info("Phase 4: Recovering the replica")
	env.Chaos.SetLatency(0)
	env.Client.ForceReplicaHealthCheck(ctx)

	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return env.Client.IsReplicaAvailable()
	}); err != nil {
		return fmt.Errorf("replica never recovered from degradation: %w", err)
	}

	env.Logger.Info("DegradedReplica scenario completed")

	return nil
}
