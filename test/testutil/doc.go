// Package testutil provides test utilities and fake implementations for tandem testing.
//
// This package provides deterministic fakes for tandem's injection points, as
// well as helper functions for integration tests.
//
// # Fake Implementations
//
// The package provides fakes for unit testing:
//
//   - [ScriptedDB]: Scriptable sqladapter.DB with per-call error scripts
//   - [ScriptedProbe]: Scriptable health probe function
//   - [FakeClock]: Manually advanced millisecond clock for lag tests
//   - [CapturingLogger]: types.Logger that records entries for assertion
//   - [TestMetricsCollector]: types.MetricsCollector that records counts
//
// # Usage
//
// Build a client against scripted endpoints:
//
//	primary := testutil.NewScriptedDB()
//	replica := testutil.NewScriptedDB()
//	probe := &testutil.ScriptedProbe{}
//	clock := testutil.NewFakeClock(0)
//
//	client, _ := tandem.NewClient(primary, replica,
//		tandem.WithProbe(probe.Probe),
//		tandem.WithTimestampProvider(clock.Now),
//	)
//
// # Integration Test Helpers
//
// For integration tests, helper functions are provided:
//
//   - StartPostgres: Starts a PostgreSQL test container (requires Docker)
//   - StartPostgresPair: Starts independent primary and replica containers
package testutil
