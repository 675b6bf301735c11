package scenarios

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudbank/tandem/test/simulation/types"
	tandemtypes "github.com/cloudbank/tandem/types"
)

// LagDrain verifies the lag window expires once writes stop and the
// replica resumes serving the freshest data.
type LagDrain struct{}

func (s *LagDrain) Name() string {
	return "lag-drain"
}

func (s *LagDrain) Description() string {
	return "Pauses the workload to verify the lag window expires and reads return to the replica"
}

func (s *LagDrain) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting LagDrain scenario")

	// 1. Stop the write stream
	env.Logger.Info("Phase 1: Pausing the workload")
	env.PauseWorkload()
	defer env.ResumeWorkload()

	// 2. Wait out the lag window and the replication delay
	env.Logger.Info("Phase 2: Waiting for the lag window to expire")
	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return env.Client.IsReplicaReady(ctx)
	}); err != nil {
		return fmt.Errorf("lag window never expired: %w", err)
	}

	// 3. The freshest key must now come from the replica
	env.Logger.Info("Phase 3: Reading the freshest key")
	target, found, err := readLatest(ctx, env, true)
	if err != nil {
		return fmt.Errorf("read after drain failed: %w", err)
	}
	if !found {
		return errors.New("freshest key missing after replication drain")
	}
	if target != tandemtypes.TargetReplica {
		return fmt.Errorf("read after drain served by %s, want replica", target)
	}

	env.Logger.Info("LagDrain scenario completed")

	return nil
}
