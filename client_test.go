package tandem

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	"github.com/cloudbank/tandem/lag"
	"github.com/cloudbank/tandem/types"
	"github.com/stretchr/testify/require"
)

// mockDB implements sqladapter.DB for testing.
type mockDB struct {
	pingErr error
	pings   atomic.Int32
	closed  atomic.Bool
}

// Compile-time assertion.
var _ sqladapter.DB = (*mockDB)(nil)

func newMockDB() *mockDB {
	return &mockDB{}
}

func (m *mockDB) ExecContext(_ context.Context, _ string, _ ...any) (sql.Result, error) {
	return nil, nil
}

func (m *mockDB) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return nil
}

func (m *mockDB) BeginTx(_ context.Context, _ *sql.TxOptions) (*sql.Tx, error) {
	return nil, nil
}

func (m *mockDB) PingContext(_ context.Context) error {
	m.pings.Add(1)

	return m.pingErr
}

func (m *mockDB) Close() error {
	m.closed.Store(true)

	return nil
}

// opRecorder scripts per-call outcomes for an operation and records the
// target and handle of every attempt.
type opRecorder struct {
	mu      sync.Mutex
	script  []error // outcome per call; nil entry or beyond-script = success
	targets []types.Target
	handles []sqladapter.DB
}

func (r *opRecorder) op(ctx context.Context, db sqladapter.DB) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, _ := TargetFromContext(ctx)
	r.targets = append(r.targets, target)
	r.handles = append(r.handles, db)

	call := len(r.targets)
	if call <= len(r.script) && r.script[call-1] != nil {
		return nil, r.script[call-1]
	}

	return "ok", nil
}

func (r *opRecorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.targets)
}

func (r *opRecorder) targetAt(i int) types.Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.targets[i]
}

// testClock is a fake millisecond clock for deterministic lag tests.
type testClock struct {
	ms atomic.Int64
}

func (c *testClock) Now() int64 { return c.ms.Load() }

func (c *testClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

func (c *testClock) Set(t int64) { c.ms.Store(t) }

// newTestClient builds a client over mocks with a deterministic clock
// and no real sleeping.
func newTestClient(t *testing.T, opts ...Option) (*Client, *mockDB, *mockDB, *testClock) {
	t.Helper()

	clock := &testClock{}
	clock.Set(1_000_000)

	primary := newMockDB()
	replica := newMockDB()

	base := []Option{WithTimestampProvider(clock.Now)}
	client, err := NewClient(primary, replica, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	client.sleep = func(context.Context, time.Duration) error { return nil }

	return client, primary, replica, clock
}

func TestNewClient(t *testing.T) {
	primary := newMockDB()
	replica := newMockDB()

	client, err := NewClient(primary, replica)
	require.NoError(t, err)
	require.NotNil(t, client)
	require.False(t, client.IsPrimaryOnly())
	client.Close()
}

func TestNewClientNilPrimary(t *testing.T) {
	replica := newMockDB()

	// primary is required
	_, err := NewClient(nil, replica)
	require.ErrorIs(t, err, types.ErrNilPrimary)

	// replica is optional (nil = primary-only mode)
	client, err := NewClient(newMockDB(), nil)
	require.NoError(t, err)
	require.True(t, client.IsPrimaryOnly())
	client.Close()
}

func TestNewClientInvalidConfig(t *testing.T) {
	primary := newMockDB()

	_, err := NewClient(primary, nil, WithLagThreshold(-time.Second))
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestNewClientFromDB(t *testing.T) {
	_, err := NewClientFromDB(nil, nil)
	require.ErrorIs(t, err, types.ErrNilPrimary)
}

func TestPrimaryOnlyMode(t *testing.T) {
	clock := &testClock{}
	primary := newMockDB()

	client, err := NewClient(primary, nil, WithTimestampProvider(clock.Now))
	require.NoError(t, err)
	defer client.Close()

	t.Run("reads route to primary", func(t *testing.T) {
		rec := &opRecorder{}

		result, err := client.RunRead(t.Context(), true, rec.op)
		require.NoError(t, err)
		require.Equal(t, "ok", result)
		require.Equal(t, types.TargetPrimary, rec.targetAt(0))
	})

	t.Run("replica is never available", func(t *testing.T) {
		require.False(t, client.IsReplicaAvailable())
		require.False(t, client.IsReplicaReady(t.Context()))
	})

	t.Run("forced health check reports unavailable", func(t *testing.T) {
		require.Equal(t, types.HealthUnavailable, client.ForceReplicaHealthCheck(t.Context()))
	})

	t.Run("probing cannot start", func(t *testing.T) {
		require.ErrorIs(t, client.StartProbing(), types.ErrNoReplica)
	})

	t.Run("events channel is nil", func(t *testing.T) {
		require.Nil(t, client.Events())
	})
}

func TestRunReadRoutesToReplica(t *testing.T) {
	client, _, replica, _ := newTestClient(t)
	rec := &opRecorder{}

	result, err := client.RunRead(t.Context(), true, rec.op)
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
	require.Same(t, replica, rec.handles[0])
}

func TestRunWriteRoutesToPrimary(t *testing.T) {
	client, primary, _, _ := newTestClient(t)
	rec := &opRecorder{}

	result, err := client.RunWrite(t.Context(), true, rec.op)
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, types.TargetPrimary, rec.targetAt(0))
	require.Same(t, primary, rec.handles[0])
}

func TestReadYourWrites(t *testing.T) {
	client, _, _, clock := newTestClient(t)
	ctx := t.Context()

	_, err := client.RunWrite(ctx, true, (&opRecorder{}).op)
	require.NoError(t, err)
	require.False(t, client.IsReplicaReady(ctx))

	// Within the replication window, fresh reads go to the primary
	rec := &opRecorder{}
	_, err = client.RunRead(ctx, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetPrimary, rec.targetAt(0))

	// Once the window has passed, reads return to the replica
	clock.Advance(DefaultLagThreshold)
	require.True(t, client.IsReplicaReady(ctx))

	rec = &opRecorder{}
	_, err = client.RunRead(ctx, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestStaleReadsStayOnReplica(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	ctx := t.Context()

	_, err := client.RunWrite(ctx, true, (&opRecorder{}).op)
	require.NoError(t, err)

	// fallbackAllowed=false accepts staleness and keeps the replica
	rec := &opRecorder{}
	_, err = client.RunRead(ctx, false, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestUntrackedWriteDoesNotRedirectReads(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	ctx := t.Context()

	_, err := client.RunWrite(ctx, false, (&opRecorder{}).op)
	require.NoError(t, err)
	require.True(t, client.IsReplicaReady(ctx))

	rec := &opRecorder{}
	_, err = client.RunRead(ctx, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestReplicaUnavailableAlwaysRoutesPrimary(t *testing.T) {
	probeErr := atomicError{}
	probeErr.set(errors.New("replica down"))

	client, _, _, _ := newTestClient(t, WithProbe(func(context.Context) error {
		return probeErr.get()
	}))
	ctx := t.Context()

	require.Equal(t, types.HealthUnavailable, client.ForceReplicaHealthCheck(ctx))
	require.False(t, client.IsReplicaAvailable())

	// Even stale-tolerant reads must not touch an unavailable replica
	rec := &opRecorder{}
	_, err := client.RunRead(ctx, false, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetPrimary, rec.targetAt(0))

	// Recovery puts reads back on the replica
	probeErr.set(nil)
	require.Equal(t, types.HealthAvailable, client.ForceReplicaHealthCheck(ctx))

	rec = &opRecorder{}
	_, err = client.RunRead(ctx, false, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestSessionIsolation(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	sessionCtx, done := client.WithSession(t.Context())
	defer done()

	_, err := client.RunWrite(sessionCtx, true, (&opRecorder{}).op)
	require.NoError(t, err)

	// The session that wrote reads from the primary
	rec := &opRecorder{}
	_, err = client.RunRead(sessionCtx, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetPrimary, rec.targetAt(0))

	// A caller outside the session is unaffected
	rec = &opRecorder{}
	_, err = client.RunRead(t.Context(), true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestWithSessionID(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	ctxA := WithSessionID(t.Context(), "request-a")
	ctxB := WithSessionID(t.Context(), "request-b")

	_, err := client.RunWrite(ctxA, true, (&opRecorder{}).op)
	require.NoError(t, err)

	rec := &opRecorder{}
	_, err = client.RunRead(ctxA, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetPrimary, rec.targetAt(0))

	rec = &opRecorder{}
	_, err = client.RunRead(ctxB, true, rec.op)
	require.NoError(t, err)
	require.Equal(t, types.TargetReplica, rec.targetAt(0))
}

func TestTimeSinceLastWrite(t *testing.T) {
	client, _, _, clock := newTestClient(t)
	ctx := t.Context()

	require.Equal(t, lag.Forever, client.TimeSinceLastWrite(ctx))

	_, err := client.RunWrite(ctx, true, (&opRecorder{}).op)
	require.NoError(t, err)

	clock.Advance(40 * time.Millisecond)
	require.Equal(t, 40*time.Millisecond, client.TimeSinceLastWrite(ctx))
}

func TestResetLagTracking(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	ctx := t.Context()

	_, err := client.RunWrite(ctx, true, (&opRecorder{}).op)
	require.NoError(t, err)
	require.False(t, client.IsReplicaReady(ctx))

	client.ResetLagTracking(ctx)
	require.True(t, client.IsReplicaReady(ctx))
	require.Equal(t, lag.Forever, client.TimeSinceLastWrite(ctx))
}

func TestRunAfterClose(t *testing.T) {
	client, _, _, _ := newTestClient(t)
	require.NoError(t, client.Close())
	require.True(t, client.IsClosed())

	_, err := client.RunRead(t.Context(), true, (&opRecorder{}).op)
	require.ErrorIs(t, err, types.ErrClosed)

	_, err = client.RunWrite(t.Context(), true, (&opRecorder{}).op)
	require.ErrorIs(t, err, types.ErrClosed)

	require.ErrorIs(t, client.PingPrimary(t.Context()), types.ErrClosed)
	require.ErrorIs(t, client.StartProbing(), types.ErrClosed)
}

func TestNilOperation(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	_, err := client.RunRead(t.Context(), true, nil)
	require.ErrorIs(t, err, types.ErrNilOperation)

	_, err = client.RunWrite(t.Context(), true, nil)
	require.ErrorIs(t, err, types.ErrNilOperation)
}

func TestCloseLeavesHandlesOpen(t *testing.T) {
	client, primary, replica, _ := newTestClient(t)

	require.NoError(t, client.Close())

	// Handles are caller-owned; Close must not touch them
	require.False(t, primary.closed.Load())
	require.False(t, replica.closed.Load())
}

func TestCloseIdempotent(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestCloseStopsBackgroundProbing(t *testing.T) {
	primary := newMockDB()
	replica := newMockDB()

	client, err := NewClient(primary, replica, WithBackgroundProbing())
	require.NoError(t, err)
	require.True(t, client.health.IsRunning())

	require.NoError(t, client.Close())
	require.False(t, client.health.IsRunning())
}

func TestPingPrimary(t *testing.T) {
	client, primary, _, _ := newTestClient(t)

	require.NoError(t, client.PingPrimary(t.Context()))
	require.Equal(t, int32(1), primary.pings.Load())

	primary.pingErr = errors.New("primary down")
	require.Error(t, client.PingPrimary(t.Context()))
}

func TestDefaultProbePingsReplicaHandle(t *testing.T) {
	client, primary, replica, _ := newTestClient(t)

	client.ForceReplicaHealthCheck(t.Context())

	require.Equal(t, int32(1), replica.pings.Load())
	require.Equal(t, int32(0), primary.pings.Load())
}

func TestTargetFromContextOutsideOperation(t *testing.T) {
	_, ok := TargetFromContext(t.Context())
	require.False(t, ok)
}

func TestReadHelper(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	balance, err := Read(t.Context(), client, true, func(_ context.Context, _ DB) (int64, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), balance)

	opErr := errors.New("boom")
	_, err = Read(t.Context(), client, true, func(_ context.Context, _ DB) (int64, error) {
		return 0, opErr
	})
	require.ErrorIs(t, err, opErr)
}

func TestWriteHelper(t *testing.T) {
	client, _, _, _ := newTestClient(t)

	rows, err := Write(t.Context(), client, true, func(_ context.Context, _ DB) (int64, error) {
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)
	require.False(t, client.IsReplicaReady(t.Context()))
}

// atomicError is a race-safe settable error for probe scripting.
type atomicError struct {
	mu  sync.Mutex
	err error
}

func (a *atomicError) set(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *atomicError) get() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.err
}
