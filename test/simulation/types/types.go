// Package types holds the shared simulation environment and scenario
// contract.
package types

import (
	"context"
	"log/slog"

	"github.com/cloudbank/tandem"
	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	"github.com/cloudbank/tandem/test/simulation/chaos"
	"github.com/cloudbank/tandem/test/simulation/workload"
)

// Environment holds the shared resources for the simulation.
type Environment struct {
	// Client is the routing client under test. Its replica handle is the
	// chaos wrapper below.
	Client *tandem.Client

	// Chaos is the replica handle as the client sees it. Scenarios inject
	// faults here.
	Chaos *chaos.DB

	// Primary and Replica are the raw backend handles, bypassing both the
	// client and the chaos wrapper. Verification and simulated replication
	// use these.
	Primary sqladapter.DB
	Replica sqladapter.DB

	// Write performs one tracked workload write through the client using
	// the provided context, so scenarios can drive bursts or
	// session-scoped writes.
	Write func(ctx context.Context) error

	// PauseWorkload and ResumeWorkload gate the background writers and
	// readers, letting a scenario quiet the lag window.
	PauseWorkload  func()
	ResumeWorkload func()

	Tracker *workload.Tracker
	Logger  *slog.Logger
}

// Scenario defines a test scenario interface.
type Scenario interface {
	// Name returns the unique name of the scenario.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Run executes the scenario logic.
	Run(ctx context.Context, env *Environment) error
}
