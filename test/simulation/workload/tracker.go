// Package workload records the simulation's writes and read outcomes for
// verification.
package workload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
	"github.com/cloudbank/tandem/types"
)

// Tracker tracks successful writes and read outcomes.
//
// Writes are verified against both backends at the end of the run. Fresh
// misses count reads that should have observed a recent write but did
// not; any nonzero count is a read-your-writes violation.
type Tracker struct {
	mu         sync.RWMutex
	writes     map[uuid.UUID]int64 // key -> written-at (unix nanos)
	latest     uuid.UUID
	haveLatest bool

	primaryReads atomic.Int64
	replicaReads atomic.Int64
	readErrors   atomic.Int64
	freshMisses  atomic.Int64
}

// NewTracker creates a new tracker.
func NewTracker() *Tracker {
	return &Tracker{
		writes: make(map[uuid.UUID]int64),
	}
}

// TrackWrite records a successful write.
func (t *Tracker) TrackWrite(key uuid.UUID, timestampUnixNano int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[key] = timestampUnixNano
	t.latest = key
	t.haveLatest = true
}

// Latest returns the most recently tracked key.
func (t *Tracker) Latest() (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.latest, t.haveLatest
}

// Count returns the number of currently tracked writes.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.writes)
}

// TrackRead records which backend served a read.
func (t *Tracker) TrackRead(target types.Target) {
	if target == types.TargetPrimary {
		t.primaryReads.Add(1)
	} else {
		t.replicaReads.Add(1)
	}
}

// TrackReadError records a read that surfaced an error to the workload.
func (t *Tracker) TrackReadError() {
	t.readErrors.Add(1)
}

// TrackFreshMiss records a fresh read that did not observe its write.
func (t *Tracker) TrackFreshMiss() {
	t.freshMisses.Add(1)
}

// PrimaryReads returns the number of reads served by the primary.
func (t *Tracker) PrimaryReads() int64 {
	return t.primaryReads.Load()
}

// ReplicaReads returns the number of reads served by the replica.
func (t *Tracker) ReplicaReads() int64 {
	return t.replicaReads.Load()
}

// ReadErrors returns the number of reads that surfaced an error.
func (t *Tracker) ReadErrors() int64 {
	return t.readErrors.Load()
}

// FreshMisses returns the number of read-your-writes violations.
func (t *Tracker) FreshMisses() int64 {
	return t.freshMisses.Load()
}

// VerifyWrites checks that every tracked write exists on the given
// backend.
func (t *Tracker) VerifyWrites(ctx context.Context, db sqladapter.DB, label string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var missing int
	total := len(t.writes)
	checked := 0

	fmt.Printf("Verifying %d keys on %s...\n", total, label)

	for key := range t.writes {
		checked++
		if checked%1000 == 0 {
			fmt.Printf("Checked %d/%d keys...\r", checked, total)
		}

		if !rowExists(ctx, db, key) {
			missing++
		}
	}
	fmt.Println()

	if missing > 0 {
		return fmt.Errorf("%s is missing %d of %d tracked writes", label, missing, total)
	}

	return nil
}

// VerifyAndPrune verifies writes older than minAge on both backends and
// removes them to bound memory. This keeps long soak runs from growing
// the tracked set without limit.
func (t *Tracker) VerifyAndPrune(ctx context.Context, primary, replica sqladapter.DB, minAge time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-minAge).UnixNano()
	pruned := 0
	var missingPrimary, missingReplica int

	for key, ts := range t.writes {
		if ts >= cutoff {
			continue
		}

		if !rowExists(ctx, primary, key) {
			missingPrimary++
		}
		if !rowExists(ctx, replica, key) {
			missingReplica++
		}

		delete(t.writes, key)
		pruned++
	}

	if missingPrimary > 0 || missingReplica > 0 {
		return pruned, fmt.Errorf("consistency check failed during pruning: primary=%d, replica=%d missing",
			missingPrimary, missingReplica)
	}

	return pruned, nil
}

func rowExists(ctx context.Context, db sqladapter.DB, key uuid.UUID) bool {
	var id string
	err := db.QueryRowContext(ctx, "SELECT id FROM sim_data WHERE id = ?", key.String()).Scan(&id)

	return err == nil
}
