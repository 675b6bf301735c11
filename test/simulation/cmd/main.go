// Command cmd runs the routing simulation: a continuous read/write
// workload against an in-memory primary/replica pair while scenarios
// inject replica faults and verify the client's routing behavior.
//
// # Running
//
//	go run ./test/simulation/cmd -profile quick
//	go run ./test/simulation/cmd -profile comprehensive -seed 42
//	go run ./test/simulation/cmd -config sim.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentional for simulation
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudbank/tandem/test/simulation"
	"github.com/cloudbank/tandem/test/simulation/config"
	"github.com/cloudbank/tandem/test/simulation/scenarios"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	profile := flag.String("profile", "quick", "Simulation profile (quick, comprehensive, soak)")
	duration := flag.Duration("duration", 2*time.Minute, "Total simulation duration (for soak tests)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration if provided
	var settings *config.Config
	if *configPath != "" {
		var err error
		settings, err = config.Load(*configPath)
		if err != nil {
			logger.Error("Failed to load configuration", "path", *configPath, "error", err)
			return err
		}
		// Override flags with config values if present
		if settings.Simulation.Duration > 0 {
			*duration = settings.Simulation.Duration
		}
		if settings.Simulation.Seed != 0 {
			*seed = settings.Simulation.Seed
		}
	}

	logger.Info("Starting Tandem Routing Simulation",
		"profile", *profile,
		"seed", *seed,
		"duration", *duration,
	)

	// Start pprof server
	go func() {
		logger.Info("Starting pprof server on :6060")
		server := &http.Server{
			Addr:              ":6060",
			ReadHeaderTimeout: 3 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			logger.Error("pprof server failed", "error", err)
		}
	}()

	// Handle signals for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create simulation config
	simConfig := simulation.Config{
		Seed:     *seed,
		Duration: *duration,
		Profile:  *profile,
		Settings: settings,
	}

	// Initialize simulation orchestrator
	sim, err := simulation.New(simConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize simulation", "error", err)
		return err
	}

	// Register scenarios based on profile
	registerScenarios(sim, *profile)

	// Run simulation
	if err := sim.Run(ctx); err != nil {
		logger.Error("Simulation failed", "error", err)
		return err
	}

	logger.Info("Simulation completed successfully")

	return nil
}

func registerScenarios(sim *simulation.Simulation, profile string) {
	// Basic scenarios always included
	sim.RegisterScenario(&scenarios.ReplicaOutage{})
	sim.RegisterScenario(&scenarios.DegradedReplica{})
	sim.RegisterScenario(&scenarios.LagDrain{})

	// Add more scenarios based on profile
	if profile == "comprehensive" || profile == "soak" {
		sim.RegisterScenario(&scenarios.ProbeFlap{})
		sim.RegisterScenario(&scenarios.SessionPinning{})
	}
}
