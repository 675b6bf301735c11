// Package health probes the replica and caches its availability.
//
// # State Machine
//
// A [Monitor] holds one of two states:
//
//   - AVAILABLE (initial): reads may route to the replica
//   - UNAVAILABLE: every read routes to the primary
//
// A failed probe while available emits a failover [types.Transition]; a
// successful probe while unavailable emits a recovery. Same-state results
// emit nothing, so subscribers only ever see actual changes.
//
// # Probing
//
// Probes are throttled: [Monitor.Check] runs the probe at most once per
// check interval no matter how many concurrent readers call it, and the
// callers that do not win the window return the cached state without
// blocking. [Monitor.ForceCheck] bypasses the throttle for operator
// endpoints; concurrent forced checks share one in-flight probe.
//
// Every probe runs detached from the caller's cancellation under the
// monitor's own timeout, and a probe error (or panic) is treated as an
// unavailability observation, never propagated.
//
// # Background Probing
//
// For deployments that must keep probe latency off the read path entirely,
// [Monitor.Start] launches a loop that probes every check interval:
//
//	monitor := health.NewMonitor(pool.Probe(replica),
//	    health.WithCheckInterval(5*time.Second),
//	)
//	_ = monitor.Start()
//	defer monitor.Stop()
//
// # Observing Transitions
//
// Transitions reach the configured logger, the metrics collector, the
// optional WithOnTransition callback, and the buffered [Monitor.Events]
// channel (dropped when nobody drains, never blocking the probe path).
package health
