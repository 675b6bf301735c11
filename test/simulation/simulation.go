// Package simulation runs fault scenarios against a live routing client
// while a background workload writes and reads continuously.
//
// The two backends are in-memory SQLite databases. A replicator applies
// every tracked write to the replica after a configurable delay, standing
// in for streaming replication, so the lag window has real misses to
// protect against: a fresh read served by the replica before the delay
// elapses would not find its row.
package simulation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cloudbank/tandem"
	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	"github.com/cloudbank/tandem/test/simulation/chaos"
	"github.com/cloudbank/tandem/test/simulation/config"
	simtypes "github.com/cloudbank/tandem/test/simulation/types"
	"github.com/cloudbank/tandem/test/simulation/workload"
	"github.com/cloudbank/tandem/types"
)

const simSchema = `CREATE TABLE IF NOT EXISTS sim_data (id TEXT PRIMARY KEY, data BLOB)`

// Config holds simulation configuration.
type Config struct {
	Duration time.Duration
	Seed     int64
	Profile  string
	Settings *config.Config
}

// Simulation orchestrates the test execution.
type Simulation struct {
	config          Config
	settings        *config.Config
	logger          *slog.Logger
	env             *simtypes.Environment
	scenarios       []simtypes.Scenario
	failedScenarios []string
	stopWorkload    context.CancelFunc
	paused          atomic.Bool
	replWG          sync.WaitGroup

	rngMu sync.Mutex
	rng   *rand.Rand

	primaryDB *sql.DB
	replicaDB *sql.DB
}

// New creates a new simulation instance.
func New(cfg Config, logger *slog.Logger) (*Simulation, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	return &Simulation{
		config:    cfg,
		settings:  settings,
		logger:    logger,
		scenarios: make([]simtypes.Scenario, 0),
		//nolint:gosec // Simulation data, not security sensitive
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// RegisterScenario adds a scenario to the simulation.
func (s *Simulation) RegisterScenario(scenario simtypes.Scenario) {
	s.scenarios = append(s.scenarios, scenario)
}

// Run executes the simulation.
func (s *Simulation) Run(ctx context.Context) error {
	s.logger.Info("Initializing simulation environment...")

	if err := s.setupEnvironment(); err != nil {
		return fmt.Errorf("failed to setup environment: %w", err)
	}
	defer s.teardown()

	s.logger.Info("Starting workload...")
	workloadCtx, cancel := context.WithCancel(ctx)
	s.stopWorkload = cancel
	go s.generateTraffic(workloadCtx)
	for range s.settings.Workload.Readers {
		go s.runReader(workloadCtx)
	}

	// Start pruner for soak tests
	if s.config.Profile == "soak" {
		go s.runPruner(workloadCtx)
	}

	for _, scenario := range s.scenarios {
		if ctx.Err() != nil {
			break
		}

		s.logger.Info("--------------------------------------------------")
		s.logger.Info("Running Scenario", "name", scenario.Name())
		s.logger.Info("--------------------------------------------------")

		if err := scenario.Run(ctx, s.env); err != nil {
			s.logger.Error("Scenario failed", "error", err)
			s.failedScenarios = append(s.failedScenarios, scenario.Name())
		} else {
			s.logger.Info("Scenario completed successfully")
		}
		time.Sleep(2 * time.Second)
	}

	s.logger.Info("Stopping workload...")
	cancel()
	time.Sleep(1 * time.Second)

	return s.verify()
}

func (s *Simulation) setupEnvironment() error {
	primaryDB, err := openMemoryDB()
	if err != nil {
		return fmt.Errorf("failed to open primary: %w", err)
	}

	replicaDB, err := openMemoryDB()
	if err != nil {
		_ = primaryDB.Close()

		return fmt.Errorf("failed to open replica: %w", err)
	}

	s.primaryDB = primaryDB
	s.replicaDB = replicaDB

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := primaryDB.ExecContext(ctx, simSchema); err != nil {
		return fmt.Errorf("failed to create schema on primary: %w", err)
	}
	if _, err := replicaDB.ExecContext(ctx, simSchema); err != nil {
		return fmt.Errorf("failed to create schema on replica: %w", err)
	}

	primary := sqladapter.WrapDB(primaryDB)
	replica := sqladapter.WrapDB(replicaDB)
	chaosDB := chaos.NewDB(replica)

	rt := s.settings.Routing
	client, err := tandem.NewClient(primary, chaosDB,
		tandem.WithLagThreshold(rt.LagThreshold),
		tandem.WithHealthCheckInterval(rt.HealthCheckInterval),
		tandem.WithProbeTimeout(rt.ProbeTimeout),
		tandem.WithRetryPolicy(tandem.RetryPolicy{MaxAttempts: rt.MaxAttempts}),
	)
	if err != nil {
		return err
	}

	s.env = &simtypes.Environment{
		Client:         client,
		Chaos:          chaosDB,
		Primary:        primary,
		Replica:        replica,
		Write:          s.writeOnce,
		PauseWorkload:  func() { s.paused.Store(true) },
		ResumeWorkload: func() { s.paused.Store(false) },
		Tracker:        workload.NewTracker(),
		Logger:         s.logger,
	}

	return nil
}

func (s *Simulation) teardown() {
	if s.stopWorkload != nil {
		s.stopWorkload()
	}
	if s.env != nil && s.env.Client != nil {
		_ = s.env.Client.Close()
	}
	if s.primaryDB != nil {
		_ = s.primaryDB.Close()
	}
	if s.replicaDB != nil {
		_ = s.replicaDB.Close()
	}
}

// openMemoryDB opens an isolated in-memory database limited to a single
// connection, so probes and queries observe the same data.
func openMemoryDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	return db, nil
}

// writeOnce performs one tracked write through the client and schedules
// its replication.
func (s *Simulation) writeOnce(ctx context.Context) error {
	id := uuid.New()
	data := make([]byte, 100)
	s.rngMu.Lock()
	_, _ = s.rng.Read(data)
	s.rngMu.Unlock()

	_, err := s.env.Client.RunWrite(ctx, true,
		func(ctx context.Context, db tandem.DB) (any, error) {
			return db.ExecContext(ctx, "INSERT INTO sim_data (id, data) VALUES (?, ?)", id.String(), data)
		})
	if err != nil {
		return err
	}

	s.env.Tracker.TrackWrite(id, time.Now().UnixNano())
	s.scheduleReplication(id, data)

	return nil
}

// scheduleReplication applies the write to the replica after the
// configured delay, standing in for streaming replication. The apply
// bypasses the chaos wrapper: outages as simulated here delay reads, not
// the replication stream.
func (s *Simulation) scheduleReplication(id uuid.UUID, data []byte) {
	s.replWG.Add(1)
	time.AfterFunc(s.settings.Workload.ReplicationDelay, func() {
		defer s.replWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := s.env.Replica.ExecContext(ctx,
			"INSERT OR REPLACE INTO sim_data (id, data) VALUES (?, ?)", id.String(), data)
		if err != nil {
			s.logger.Error("Replication apply failed", "error", err)
		}
	})
}

func (s *Simulation) generateTraffic(ctx context.Context) {
	ticker := time.NewTicker(s.settings.Workload.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			if err := s.writeOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Write failed", "error", err)
			}
		}
	}
}

// runReader alternates between a fresh read of the latest key, which must
// observe its write, and a stale-tolerant read that prefers the replica.
func (s *Simulation) runReader(ctx context.Context) {
	ticker := time.NewTicker(s.settings.Workload.ReadInterval)
	defer ticker.Stop()

	fresh := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			fresh = !fresh
			s.readOnce(ctx, fresh)
		}
	}
}

func (s *Simulation) readOnce(ctx context.Context, fresh bool) {
	key, ok := s.env.Tracker.Latest()
	if !ok {
		return
	}

	var served types.Target
	result, err := s.env.Client.RunRead(ctx, fresh,
		func(ctx context.Context, db tandem.DB) (any, error) {
			if target, ok := tandem.TargetFromContext(ctx); ok {
				served = target
			}

			rows, err := db.QueryContext(ctx, "SELECT id FROM sim_data WHERE id = ?", key.String())
			if err != nil {
				return false, err
			}
			defer func() { _ = rows.Close() }()

			return rows.Next(), rows.Err()
		})
	if err != nil {
		if ctx.Err() == nil {
			s.env.Tracker.TrackReadError()
		}

		return
	}

	s.env.Tracker.TrackRead(served)

	if found, _ := result.(bool); fresh && !found {
		s.env.Tracker.TrackFreshMiss()
		s.logger.Warn("Fresh read missed its write", "key", key.String(), "target", served.String())
	}
}

func (s *Simulation) verify() error {
	s.logger.Info("Verifying simulation results...")

	// Reset chaos to ensure clean verification
	s.env.Chaos.Reset()

	s.logger.Info("Waiting for replication to drain...")
	s.replWG.Wait()

	tracker := s.env.Tracker
	s.logger.Info("Workload summary",
		"writes", tracker.Count(),
		"primary_reads", tracker.PrimaryReads(),
		"replica_reads", tracker.ReplicaReads(),
		"read_errors", tracker.ReadErrors(),
		"fresh_misses", tracker.FreshMisses(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := tracker.VerifyWrites(ctx, s.env.Primary, "primary"); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if err := tracker.VerifyWrites(ctx, s.env.Replica, "replica"); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if misses := tracker.FreshMisses(); misses > 0 {
		return fmt.Errorf("%d fresh reads missed their writes", misses)
	}

	if len(s.failedScenarios) > 0 {
		return fmt.Errorf("%d scenario(s) failed: %s",
			len(s.failedScenarios), strings.Join(s.failedScenarios, ", "))
	}

	s.logger.Info("Verification passed!")

	return nil
}

func (s *Simulation) runPruner(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Prune writes older than 5 minutes
			pruned, err := s.env.Tracker.VerifyAndPrune(ctx, s.env.Primary, s.env.Replica, 5*time.Minute)
			if err != nil {
				s.logger.Error("Pruning failed", "error", err)
			} else {
				s.logger.Info("Pruned old writes", "count", pruned)
			}
		}
	}
}
