// Package lag tracks write recency so reads can avoid a replica that has
// not plausibly caught up yet.
//
// A Tracker holds one process-wide default mark plus an optional mark per
// logical session. A session is a causally-related read-after-write
// sequence (one request, one user transaction boundary); its identity is a
// string ID carried in the context. Contexts without a session share the
// default mark. Contexts with a session are isolated: another session's
// writes never force their reads to the primary.
//
// All state is process-local and deliberately ephemeral; nothing survives
// a restart.
package lag

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultThreshold is how long after a tracked write the replica is
// presumed stale.
const DefaultThreshold = 100 * time.Millisecond

// Forever is returned by SinceLastWrite when no write has been tracked.
const Forever = time.Duration(math.MaxInt64)

type sessionKeyType struct{}

var sessionKey sessionKeyType

// WithSessionID attaches an existing session identifier to the context.
//
// Use this when the caller already has a stable per-request ID. Marks
// recorded under the ID stay in the tracker until ReleaseSession or
// ResetAll; prefer [Tracker.StartSession] for automatic cleanup.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionFromContext returns the session ID attached to the context, if any.
func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey).(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// Tracker records the timestamp of the most recent write and answers
// whether enough time has passed for the replica to reflect it.
//
// Marks are unix-millisecond timestamps in atomics; zero means "no tracked
// write". Reads vastly outnumber writes, so there is no lock anywhere on
// the read path.
type Tracker struct {
	thresholdMs int64
	now         func() int64

	def      atomic.Int64 // default mark for sessionless contexts
	sessions sync.Map     // session ID -> *atomic.Int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNowFunc overrides the clock. now must return unix milliseconds.
// Used by tests to make readiness deterministic.
func WithNowFunc(now func() int64) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a tracker with the given lag threshold.
// A non-positive threshold falls back to [DefaultThreshold].
func NewTracker(threshold time.Duration, opts ...Option) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	t := &Tracker{
		thresholdMs: threshold.Milliseconds(),
		now:         func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Threshold returns the configured lag threshold.
func (t *Tracker) Threshold() time.Duration {
	return time.Duration(t.thresholdMs) * time.Millisecond
}

// StartSession derives a context carrying a fresh session ID and returns a
// release function that drops the session's tracking state.
//
// The session is registered immediately, so it counts in [Tracker.Sessions]
// before any write. Call release when the causally-related sequence ends
// (typically deferred at the end of request handling) so entries do not
// accumulate.
func (t *Tracker) StartSession(ctx context.Context) (context.Context, func()) {
	id := uuid.NewString()
	t.sessions.LoadOrStore(id, new(atomic.Int64))

	return WithSessionID(ctx, id), func() { t.ReleaseSession(id) }
}

// ReleaseSession drops the mark recorded under the given session ID.
func (t *Tracker) ReleaseSession(id string) {
	t.sessions.Delete(id)
}

// RecordWrite stamps the context's mark with the current time.
//
// Called exactly once per successful tracked write, after the write is
// durably applied on the primary.
func (t *Tracker) RecordWrite(ctx context.Context) {
	if id, ok := SessionFromContext(ctx); ok {
		v, _ := t.sessions.LoadOrStore(id, new(atomic.Int64))
		v.(*atomic.Int64).Store(t.now())

		return
	}

	t.def.Store(t.now())
}

// ReplicaReady reports whether the replica has plausibly caught up with
// the context's most recent tracked write: true when no write is tracked,
// or when at least the threshold has elapsed since it.
func (t *Tracker) ReplicaReady(ctx context.Context) bool {
	mark := t.load(ctx)
	if mark == 0 {
		return true
	}

	return t.elapsedMs(mark) >= t.thresholdMs
}

// SinceLastWrite returns the time elapsed since the context's most recent
// tracked write, or [Forever] when none is tracked.
func (t *Tracker) SinceLastWrite(ctx context.Context) time.Duration {
	mark := t.load(ctx)
	if mark == 0 {
		return Forever
	}

	return time.Duration(t.elapsedMs(mark)) * time.Millisecond
}

// Reset clears the context's mark. Test and operations tooling only;
// production read/write paths never call this.
func (t *Tracker) Reset(ctx context.Context) {
	if id, ok := SessionFromContext(ctx); ok {
		t.sessions.Delete(id)

		return
	}

	t.def.Store(0)
}

// ResetAll clears the default mark and every session mark.
func (t *Tracker) ResetAll() {
	t.def.Store(0)
	t.sessions.Range(func(key, _ any) bool {
		t.sessions.Delete(key)

		return true
	})
}

// Sessions returns the number of live sessions: those started and not yet
// released, plus ad-hoc session IDs that have recorded writes.
func (t *Tracker) Sessions() int {
	n := 0
	t.sessions.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}

// load resolves the context's mark value. Sessions are isolated: a session
// with no recorded write reads zero, not the default mark.
func (t *Tracker) load(ctx context.Context) int64 {
	if id, ok := SessionFromContext(ctx); ok {
		if v, ok := t.sessions.Load(id); ok {
			return v.(*atomic.Int64).Load()
		}

		return 0
	}

	return t.def.Load()
}

// elapsedMs computes now-mark clamped at zero, so slight clock skew between
// the recording and reading goroutines never yields a negative elapsed time.
func (t *Tracker) elapsedMs(mark int64) int64 {
	elapsed := t.now() - mark
	if elapsed < 0 {
		return 0
	}

	return elapsed
}
