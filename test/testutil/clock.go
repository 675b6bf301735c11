package testutil

import (
	"sync/atomic"
	"time"
)

// FakeClock is a manually advanced clock for deterministic lag and health
// tests.
//
// Its Now method matches the timestamp provider signature used across the
// module, so a FakeClock can drive both the lag tracker and the health
// monitor.
//
// Example:
//
//	clock := testutil.NewFakeClock(1_000_000)
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithTimestampProvider(clock.Now),
//	)
//	// ... tracked write ...
//	clock.Advance(tandem.DefaultLagThreshold) // window expires
type FakeClock struct {
	ms atomic.Int64
}

// NewFakeClock creates a clock starting at the given Unix-millisecond
// timestamp.
func NewFakeClock(startMillis int64) *FakeClock {
	c := &FakeClock{}
	c.ms.Store(startMillis)

	return c
}

// Now returns the current fake time in Unix milliseconds.
func (c *FakeClock) Now() int64 {
	return c.ms.Load()
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}

// Set jumps the clock to the given Unix-millisecond timestamp.
func (c *FakeClock) Set(millis int64) {
	c.ms.Store(millis)
}
