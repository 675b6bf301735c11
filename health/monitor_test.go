package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbank/tandem/types"
)

// scriptProbe is a controllable probe with a call counter.
type scriptProbe struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{} // when set, probe waits for ctx or close
}

func (p *scriptProbe) probe(ctx context.Context) error {
	p.mu.Lock()
	p.calls++
	err := p.err
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-block:
		}
	}

	return err
}

func (p *scriptProbe) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *scriptProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

type testClock struct {
	ms atomic.Int64
}

func newTestClock() *testClock {
	c := &testClock{}
	c.ms.Store(1_000_000)

	return c
}

func (c *testClock) Now() int64      { return c.ms.Load() }
func (c *testClock) Advance(d int64) { c.ms.Add(d) }

func TestInitialStateIsAvailable(t *testing.T) {
	m := NewMonitor(nil)

	require.True(t, m.Available())
	assert.Equal(t, types.HealthAvailable, m.State())
	assert.True(t, m.LastChecked().IsZero())
}

func TestFirstFailureFlipsState(t *testing.T) {
	probe := &scriptProbe{err: errors.New("connection refused")}
	m := NewMonitor(probe.probe)

	state := m.ForceCheck(t.Context())

	assert.Equal(t, types.HealthUnavailable, state)
	require.False(t, m.Available(), "unavailable after the first failed probe, not after several")
	assert.Equal(t, 1, probe.count())
}

func TestNoDuplicateTransitionEvents(t *testing.T) {
	probe := &scriptProbe{err: errors.New("connection refused")}
	m := NewMonitor(probe.probe)

	m.ForceCheck(t.Context())
	m.ForceCheck(t.Context())
	m.ForceCheck(t.Context())

	require.Len(t, m.Events(), 1, "repeated failures emit a single failover event")

	tr := <-m.Events()
	require.True(t, tr.IsFailover())
	assert.Error(t, tr.Err)
}

func TestRecoveryEmitsEvent(t *testing.T) {
	probe := &scriptProbe{err: errors.New("connection refused")}
	m := NewMonitor(probe.probe)

	m.ForceCheck(t.Context())
	require.False(t, m.Available())

	probe.setErr(nil)
	state := m.ForceCheck(t.Context())

	assert.Equal(t, types.HealthAvailable, state)
	require.True(t, m.Available(), "one successful probe flips the state back")

	<-m.Events() // failover
	tr := <-m.Events()
	require.True(t, tr.IsRecovery())
	assert.NoError(t, tr.Err)
}

func TestCheckThrottlesProbes(t *testing.T) {
	clock := newTestClock()
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe,
		WithCheckInterval(5*time.Second),
		WithNowFunc(clock.Now),
	)

	for range 10 {
		require.True(t, m.Check(t.Context()))
	}
	assert.Equal(t, 1, probe.count(), "only the first check probes within the window")

	clock.Advance(4_999)
	m.Check(t.Context())
	assert.Equal(t, 1, probe.count(), "window has not elapsed yet")

	clock.Advance(1)
	m.Check(t.Context())
	assert.Equal(t, 2, probe.count(), "a new window allows one more probe")
}

func TestCheckConcurrentCallersProbeOnce(t *testing.T) {
	clock := newTestClock()
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe,
		WithCheckInterval(5*time.Second),
		WithNowFunc(clock.Now),
	)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			m.Check(context.Background())
		})
	}
	wg.Wait()

	assert.Equal(t, 1, probe.count())
}

func TestForceCheckBypassesThrottle(t *testing.T) {
	clock := newTestClock()
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe,
		WithCheckInterval(5*time.Second),
		WithNowFunc(clock.Now),
	)

	m.Check(t.Context())
	require.Equal(t, 1, probe.count())

	m.ForceCheck(t.Context())
	assert.Equal(t, 2, probe.count(), "forced check ignores the throttle window")
}

func TestProbeRunsUnderItsOwnTimeout(t *testing.T) {
	probe := &scriptProbe{block: make(chan struct{})}
	m := NewMonitor(probe.probe, WithProbeTimeout(20*time.Millisecond))

	start := time.Now()
	state := m.ForceCheck(t.Context())

	assert.Equal(t, types.HealthUnavailable, state)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbeDetachedFromCallerCancellation(t *testing.T) {
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := m.ForceCheck(ctx)

	assert.Equal(t, types.HealthAvailable, state,
		"a cancelled caller must not turn into a replica failover")
	assert.Equal(t, 1, probe.count())
}

func TestProbePanicIsAFailure(t *testing.T) {
	m := NewMonitor(func(context.Context) error {
		panic("bad probe")
	})

	state := m.ForceCheck(t.Context())

	assert.Equal(t, types.HealthUnavailable, state)
}

func TestOnTransitionCallback(t *testing.T) {
	var mu sync.Mutex
	var seen []types.Transition

	probe := &scriptProbe{err: errors.New("connection reset")}
	m := NewMonitor(probe.probe,
		WithOnTransition(func(tr types.Transition) {
			mu.Lock()
			seen = append(seen, tr)
			mu.Unlock()
		}),
	)

	m.ForceCheck(t.Context())
	probe.setErr(nil)
	m.ForceCheck(t.Context())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsFailover())
	assert.True(t, seen[1].IsRecovery())
}

func TestEventsDropWhenNobodyDrains(t *testing.T) {
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe)

	for i := range 3 * eventBufferSize {
		if i%2 == 0 {
			probe.setErr(errors.New("connection refused"))
		} else {
			probe.setErr(nil)
		}
		m.ForceCheck(t.Context())
	}

	assert.LessOrEqual(t, len(m.Events()), eventBufferSize)
}

func TestProbeDue(t *testing.T) {
	clock := newTestClock()
	m := NewMonitor((&scriptProbe{}).probe,
		WithCheckInterval(5*time.Second),
		WithNowFunc(clock.Now),
	)

	require.True(t, m.ProbeDue(), "a never-probed monitor is due")

	m.Check(t.Context())
	require.False(t, m.ProbeDue())

	clock.Advance(5_000)
	require.True(t, m.ProbeDue())
}

func TestStartStopLifecycle(t *testing.T) {
	m := NewMonitor((&scriptProbe{}).probe, WithCheckInterval(time.Hour))

	require.False(t, m.IsRunning())
	require.NoError(t, m.Start())
	require.True(t, m.IsRunning())

	require.Error(t, m.Start(), "double start is rejected")

	m.Stop()
	require.False(t, m.IsRunning())
	m.Stop() // idempotent

	require.Error(t, m.Start(), "a stopped monitor's prober is terminal")
}

func TestBackgroundProberProbes(t *testing.T) {
	probe := &scriptProbe{}
	m := NewMonitor(probe.probe, WithCheckInterval(5*time.Millisecond))

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return probe.count() >= 2
	}, 2*time.Second, time.Millisecond)
}
