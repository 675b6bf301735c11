package scenarios

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudbank/tandem/test/simulation/types"
)

// SessionPinning verifies session-scoped tracking isolates writers.
type SessionPinning struct{}

func (s *SessionPinning) Name() string {
	return "session-pinning"
}

func (s *SessionPinning) Description() string {
	return "Verifies a session-scoped writer does not push global readers to the primary"
}

func (s *SessionPinning) Run(ctx context.Context, env *types.Environment) error {
	env.Logger.Info("Starting SessionPinning scenario")

	// 1. Quiet the global window so isolation is observable
	env.Logger.Info("Phase 1: Pausing the workload and draining the lag window")
	env.PauseWorkload()
	defer env.ResumeWorkload()

	if err := waitUntil(ctx, 10*time.Second, func() bool {
		return env.Client.IsReplicaReady(ctx)
	}); err != nil {
		return fmt.Errorf("lag window never drained: %w", err)
	}

	// 2. Write inside a session
	env.Logger.Info("Phase 2: Writing inside a session")
	sessionCtx, done := env.Client.WithSession(ctx)
	defer done()

	if err := env.Write(sessionCtx); err != nil {
		return fmt.Errorf("session write failed: %w", err)
	}

	if n := env.Client.ActiveSessions(); n != 1 {
		return fmt.Errorf("expected 1 active session, got %d", n)
	}

	// 3. The session sees its own window; the global scope does not
	env.Logger.Info("Phase 3: Checking isolation")
	if env.Client.IsReplicaReady(sessionCtx) {
		return errors.New("session window should still be pending after its write")
	}
	if !env.Client.IsReplicaReady(ctx) {
		return errors.New("global readers should be unaffected by the session write")
	}

	env.Logger.Info("SessionPinning scenario completed")

	return nil
}
