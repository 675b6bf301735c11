// Package route decides which backend serves an operation.
//
// The [Decider] is the single place where intent, replica health, and
// replication lag combine into a PRIMARY-or-REPLICA choice. It is a pure
// decision: execution, retries, and mid-flight fallback on errors belong
// to the client's executor, which may revise a replica decision to the
// primary after a permanent failure.
//
// # Decision Table
//
// For a READ with replica configured:
//
//	replica health | replica caught up | fallbackAllowed | target
//	---------------+-------------------+-----------------+--------
//	unavailable    | (any)             | (any)           | PRIMARY
//	available      | no                | true            | PRIMARY
//	available      | no                | false           | REPLICA
//	available      | yes               | (any)           | REPLICA
//
// Writes route to the primary unconditionally, and so does everything in
// primary-only mode (no replica configured).
//
// The decider consumes two narrow views, [ReplicaHealth] and [LagState],
// rather than the concrete monitor and tracker, so tests can script any
// combination of states.
package route
