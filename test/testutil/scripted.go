package testutil

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	sqladapter "github.com/cloudbank/tandem/adapter/sql"
)

// ScriptedDB is a mock connection handle with per-call error scripting.
//
// Errors pushed with PushExecError are consumed one per ExecContext call;
// once the script is exhausted, the sticky error set with SetExecError (or
// nil) applies. Row-returning methods yield nil values and are only useful
// for error-path and routing tests; use a real sqlite handle when result
// data matters.
type ScriptedDB struct {
	mu         sync.Mutex
	execScript []error
	execErr    error
	queryErr   error
	pingErr    error

	execCalls  atomic.Int64
	queryCalls atomic.Int64
	pingCalls  atomic.Int64
	closed     atomic.Bool

	// OnExec, when set, intercepts ExecContext after error scripting.
	OnExec func(query string, args []any) (sql.Result, error)
}

// Compile-time assertion that ScriptedDB implements the adapter interface.
var _ sqladapter.DB = (*ScriptedDB)(nil)

// NewScriptedDB creates a handle that succeeds until scripted otherwise.
func NewScriptedDB() *ScriptedDB {
	return &ScriptedDB{}
}

// PushExecError appends errors to the exec script, consumed in order.
func (m *ScriptedDB) PushExecError(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execScript = append(m.execScript, errs...)
}

// SetExecError sets the sticky error returned once the script is empty.
func (m *ScriptedDB) SetExecError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execErr = err
}

// SetQueryError sets the sticky error for QueryContext.
func (m *ScriptedDB) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}

// SetPingError sets the sticky error for PingContext.
func (m *ScriptedDB) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// ExecCalls returns the number of ExecContext calls.
func (m *ScriptedDB) ExecCalls() int64 {
	return m.execCalls.Load()
}

// QueryCalls returns the number of QueryContext calls.
func (m *ScriptedDB) QueryCalls() int64 {
	return m.queryCalls.Load()
}

// PingCalls returns the number of PingContext calls.
func (m *ScriptedDB) PingCalls() int64 {
	return m.pingCalls.Load()
}

// IsClosed reports whether Close was called.
func (m *ScriptedDB) IsClosed() bool {
	return m.closed.Load()
}

func (m *ScriptedDB) nextExecErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.execScript) > 0 {
		err := m.execScript[0]
		m.execScript = m.execScript[1:]

		return err
	}

	return m.execErr
}

// ExecContext consumes the exec script, then the sticky error, then the
// OnExec hook.
func (m *ScriptedDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	m.execCalls.Add(1)

	if err := m.nextExecErr(); err != nil {
		return nil, err
	}

	if m.OnExec != nil {
		return m.OnExec(query, args)
	}

	return ScriptedResult{Rows: 1}, nil
}

// QueryContext returns the sticky query error; the returned rows are
// always nil.
func (m *ScriptedDB) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	m.queryCalls.Add(1)

	m.mu.Lock()
	err := m.queryErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return nil, nil //nolint:nilnil // scripted handle has no real rows
}

// QueryRowContext always returns nil; scripted handles carry no row data.
func (m *ScriptedDB) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return nil
}

// BeginTx always returns a nil transaction; scripted handles cannot open
// real transactions.
func (m *ScriptedDB) BeginTx(_ context.Context, _ *sql.TxOptions) (*sql.Tx, error) {
	return nil, nil //nolint:nilnil // scripted handle has no real transactions
}

// PingContext returns the sticky ping error.
func (m *ScriptedDB) PingContext(_ context.Context) error {
	m.pingCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pingErr
}

// Close marks the handle closed. Always succeeds.
func (m *ScriptedDB) Close() error {
	m.closed.Store(true)

	return nil
}

// ScriptedResult is the sql.Result returned by ScriptedDB.ExecContext.
type ScriptedResult struct {
	ID   int64
	Rows int64
}

// LastInsertId returns the configured insert ID.
func (r ScriptedResult) LastInsertId() (int64, error) {
	return r.ID, nil
}

// RowsAffected returns the configured affected-row count.
func (r ScriptedResult) RowsAffected() (int64, error) {
	return r.Rows, nil
}

// ScriptedProbe is a health probe with per-call error scripting.
//
// Its Probe method value satisfies health.Probe:
//
//	probe := testutil.NewScriptedProbe()
//	probe.SetErr(errors.New("replica down"))
//	client, _ := tandem.NewClient(primary, replica,
//	    tandem.WithProbe(probe.Probe),
//	)
type ScriptedProbe struct {
	mu     sync.Mutex
	script []error
	err    error
	calls  atomic.Int64
}

// NewScriptedProbe creates a probe that succeeds until scripted otherwise.
func NewScriptedProbe() *ScriptedProbe {
	return &ScriptedProbe{}
}

// Push appends errors consumed one per probe call before the sticky error
// applies. Use nil entries for interleaved successes.
func (p *ScriptedProbe) Push(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, errs...)
}

// SetErr sets the sticky error returned once the script is empty.
func (p *ScriptedProbe) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns the number of probe invocations.
func (p *ScriptedProbe) Calls() int64 {
	return p.calls.Load()
}

// Probe runs one scripted probe call.
func (p *ScriptedProbe) Probe(_ context.Context) error {
	p.calls.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]

		return err
	}

	return p.err
}
