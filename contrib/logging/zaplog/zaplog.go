// Package zaplog adapts go.uber.org/zap to the tandem Logger interface.
package zaplog

import (
	"go.uber.org/zap"

	"github.com/cloudbank/tandem/types"
)

// Logger implements types.Logger on top of a zap.SugaredLogger.
//
// Thread-safe for concurrent use.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion that Logger implements types.Logger.
var _ types.Logger = (*Logger)(nil)

// Wrap adapts an existing zap logger.
//
// Caller information is adjusted so log entries point at the call site
// rather than this adapter.
//
// Parameters:
//   - logger: The zap logger to adapt
//
// Returns:
//   - *Logger: An adapter implementing types.Logger
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithLogger(zaplog.Wrap(zl)),
//	)
func Wrap(logger *zap.Logger) *Logger {
	return &Logger{
		sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// NewProduction creates an adapter around zap's production configuration
// (JSON output, info level and above).
//
// Returns:
//   - *Logger: An adapter implementing types.Logger
//   - error: An error if the underlying logger cannot be built
func NewProduction() (*Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	return Wrap(logger), nil
}

// NewDevelopment creates an adapter around zap's development configuration
// (console output, debug level and above).
//
// Returns:
//   - *Logger: An adapter implementing types.Logger
//   - error: An error if the underlying logger cannot be built
func NewDevelopment() (*Logger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	return Wrap(logger), nil
}

// Debug logs a debug-level message with alternating key/value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

// Info logs an info-level message with alternating key/value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

// Warn logs a warning-level message with alternating key/value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

// Error logs an error-level message with alternating key/value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// Fatal logs a fatal-level message and then calls os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.sugar.Fatalw(msg, args...)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
