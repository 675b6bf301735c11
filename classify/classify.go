// Package classify decides whether a backend error is worth retrying.
//
// The verdict is consumed by the retry executor (transient errors are
// retried with backoff, permanent ones are not) and by HTTP boundaries that
// map the final error to a status code. Classification is a pure function:
// no I/O, no side effects, total over all inputs including nil.
package classify

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Verdict is the classifier's judgement of a backend error.
type Verdict int

const (
	// VerdictPermanent means retrying will not help without intervention.
	VerdictPermanent Verdict = iota
	// VerdictTransient means the error plausibly resolves itself.
	VerdictTransient
)

// String returns the string representation of the Verdict.
func (v Verdict) String() string {
	if v == VerdictTransient {
		return "transient"
	}

	return "permanent"
}

// mysqlTransientCodes are MySQL server error numbers that resolve without
// code changes: lock waits, deadlocks, interrupted queries, and the
// connection-loss family seen during RDS failover.
var mysqlTransientCodes = map[uint16]struct{}{
	1040: {}, // ER_CON_COUNT_ERROR: too many connections
	1205: {}, // ER_LOCK_WAIT_TIMEOUT
	1213: {}, // ER_LOCK_DEADLOCK
	1317: {}, // ER_QUERY_INTERRUPTED
	2002: {}, // CR_CONNECTION_ERROR: can't connect through socket
	2003: {}, // CR_CONN_HOST_ERROR: can't connect to server
	2006: {}, // CR_SERVER_GONE_ERROR
	2013: {}, // CR_SERVER_LOST: lost connection during query
}

// pgTransientStates are PostgreSQL SQLSTATE codes that resolve without code
// changes, beyond the whole class 08 (connection exceptions).
var pgTransientStates = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40002": {}, // transaction_integrity_constraint_violation
	"40P01": {}, // deadlock_detected
	"53300": {}, // too_many_connections
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
	"25006": {}, // read_only_sql_transaction: replica still in recovery
}

// transientFragments are matched case-insensitively against the error text
// as a last resort, catching drivers that only surface a message.
var transientFragments = []string{
	"connection refused",
	"connection timeout",
	"server has gone away",
	"lost connection",
	"broken pipe",
	"connection reset",
	"i/o timeout",
}

// Classify returns the verdict for a backend error.
//
// Context cancellation is deliberately permanent: the retry executor
// surfaces it as a cancellation before classification, and anything that
// still reaches the classifier must not be retried against a caller that
// has already gone away.
func Classify(err error) Verdict {
	if err == nil {
		return VerdictPermanent
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return VerdictPermanent
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return VerdictTransient
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if _, ok := mysqlTransientCodes[mysqlErr.Number]; ok {
			return VerdictTransient
		}

		return VerdictPermanent
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientSQLState(pgErr.Code) {
			return VerdictTransient
		}

		return VerdictPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if transientSQLState(string(pqErr.Code)) {
			return VerdictTransient
		}

		return VerdictPermanent
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return VerdictTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return VerdictTransient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return VerdictTransient
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return VerdictTransient
		}
	}

	return VerdictPermanent
}

// Transient reports whether the error classifies as transient.
func Transient(err error) bool {
	return Classify(err) == VerdictTransient
}

// transientSQLState reports whether a PostgreSQL SQLSTATE is transient.
// The whole connection-exception class (08xxx) qualifies.
func transientSQLState(code string) bool {
	if strings.HasPrefix(code, "08") {
		return true
	}
	_, ok := pgTransientStates[code]

	return ok
}
