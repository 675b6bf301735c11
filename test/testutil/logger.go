package testutil

import (
	"strings"
	"sync"

	"github.com/cloudbank/tandem/types"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// CapturingLogger is a types.Logger that records entries for assertions.
//
// Thread-safe for concurrent use.
type CapturingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// Compile-time assertion that CapturingLogger implements types.Logger.
var _ types.Logger = (*CapturingLogger)(nil)

// NewCapturingLogger creates an empty capturing logger.
func NewCapturingLogger() *CapturingLogger {
	return &CapturingLogger{}
}

func (l *CapturingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Debug records a debug-level entry.
func (l *CapturingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Info records an info-level entry.
func (l *CapturingLogger) Info(msg string, args ...any) { l.record("info", msg, args) }

// Warn records a warn-level entry.
func (l *CapturingLogger) Warn(msg string, args ...any) { l.record("warn", msg, args) }

// Error records an error-level entry.
func (l *CapturingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// Fatal records a fatal-level entry without exiting.
func (l *CapturingLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args) }

// Entries returns a copy of all captured entries.
func (l *CapturingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Contains reports whether any captured message contains substr.
func (l *CapturingLogger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if strings.Contains(e.Msg, substr) {
			return true
		}
	}

	return false
}

// CountLevel returns the number of entries at the given level.
func (l *CapturingLogger) CountLevel(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}

	return n
}

// Reset discards all captured entries.
func (l *CapturingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
