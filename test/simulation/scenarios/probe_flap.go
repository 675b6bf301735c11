package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudbank/tandem/test/simulation/types"
)

// ProbeFlap injects intermittent replica failures.
type ProbeFlap struct{}

func (s *ProbeFlap) Name() string {
	return "probe-flap"
}

func (s *ProbeFlap) Description() string {
	return "Injects intermittent replica errors to verify retries and fallback absorb the flapping"
}

func (s *ProbeFlap) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting ProbeFlap scenario")
	startMisses := env.Tracker.FreshMisses()
	startCount := env.Tracker.Count()

	// 1. Fail a third of all replica calls
	env.Logger.Info("Phase 1: Injecting intermittent replica errors")
	env.Chaos.SetErrorRate(0.3)

	// 2. Run under flapping conditions
	env.Logger.Info("Phase 2: Running under flapping conditions")
	if err := waitUntil(ctx, 20*time.Second, func() bool {
		return env.Tracker.Count() >= startCount+200
	}); err != nil {
		return fmt.Errorf("writes stalled while the replica flapped: %w", err)
	}

	// 3. Recover and check nothing leaked through
	env.Logger.Info("Phase 3: Recovering the replica")
	env.Chaos.Reset()
	env.Client.ForceReplicaHealthCheck(ctx)

	if misses := env.Tracker.FreshMisses() - startMisses; misses > 0 {
		return fmt.Errorf("%d fresh reads missed their writes while the replica flapped", misses)
	}

	env.Logger.Info("ProbeFlap scenario completed")

	return nil
}
