package classify

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNilIsPermanent(t *testing.T) {
	assert.Equal(t, VerdictPermanent, Classify(nil))
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, VerdictPermanent, Classify(context.Canceled))
	assert.Equal(t, VerdictPermanent, Classify(context.DeadlineExceeded))
	assert.Equal(t, VerdictPermanent, Classify(fmt.Errorf("query: %w", context.Canceled)))
}

func TestClassifyConnectionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad conn", driver.ErrBadConn},
		{"eof", io.EOF},
		{"unexpected eof", io.ErrUnexpectedEOF},
		{"invalid conn", mysql.ErrInvalidConn},
		{"refused", syscall.ECONNREFUSED},
		{"reset", syscall.ECONNRESET},
		{"pipe", syscall.EPIPE},
		{"timed out", syscall.ETIMEDOUT},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("unreachable")}},
		{"net timeout", &net.DNSError{Err: "lookup timeout", IsTimeout: true}},
		{"wrapped refused", fmt.Errorf("open primary: %w", syscall.ECONNREFUSED)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, VerdictTransient, Classify(tt.err))
		})
	}
}

func TestClassifyMySQLCodes(t *testing.T) {
	transient := []uint16{1040, 1205, 1213, 1317, 2002, 2003, 2006, 2013}
	for _, code := range transient {
		err := &mysql.MySQLError{Number: code, Message: "server error"}
		assert.Equalf(t, VerdictTransient, Classify(err), "code %d", code)
	}

	permanent := []uint16{1045, 1062, 1064, 1146}
	for _, code := range permanent {
		err := &mysql.MySQLError{Number: code, Message: "server error"}
		assert.Equalf(t, VerdictPermanent, Classify(err), "code %d", code)
	}
}

func TestClassifyPostgresStates(t *testing.T) {
	transient := []string{
		"08000", "08003", "08006", // connection exception class
		"40001", "40002", "40P01",
		"53300", "55P03",
		"57014", "57P01", "57P02", "57P03",
		"25006",
	}
	for _, code := range transient {
		pgxErr := &pgconn.PgError{Code: code, Message: "backend error"}
		assert.Equalf(t, VerdictTransient, Classify(pgxErr), "pgconn %s", code)

		pqErr := &pq.Error{Code: pq.ErrorCode(code), Message: "backend error"}
		assert.Equalf(t, VerdictTransient, Classify(pqErr), "pq %s", code)
	}

	permanent := []string{"23505", "42601", "42P01", "28P01"}
	for _, code := range permanent {
		pgxErr := &pgconn.PgError{Code: code, Message: "backend error"}
		assert.Equalf(t, VerdictPermanent, Classify(pgxErr), "pgconn %s", code)

		pqErr := &pq.Error{Code: pq.ErrorCode(code), Message: "backend error"}
		assert.Equalf(t, VerdictPermanent, Classify(pqErr), "pq %s", code)
	}
}

func TestClassifyMessageFragments(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Verdict
	}{
		{"refused", errors.New("dial tcp 10.0.0.1:3306: Connection Refused"), VerdictTransient},
		{"gone away", errors.New("MySQL server has gone away"), VerdictTransient},
		{"lost connection", errors.New("Lost Connection to MySQL server during query"), VerdictTransient},
		{"broken pipe", errors.New("write: Broken Pipe"), VerdictTransient},
		{"reset", errors.New("read: connection reset by peer"), VerdictTransient},
		{"io timeout", errors.New("read tcp 10.0.0.1:5432: i/o timeout"), VerdictTransient},
		{"conn timeout", errors.New("connection timeout expired"), VerdictTransient},
		{"wrapped", fmt.Errorf("exec: %w", errors.New("broken pipe")), VerdictTransient},
		{"syntax", errors.New("syntax error at or near SELECT"), VerdictPermanent},
		{"duplicate", errors.New("duplicate key value violates unique constraint"), VerdictPermanent},
		{"empty", errors.New(""), VerdictPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTransientHelper(t *testing.T) {
	require.True(t, Transient(driver.ErrBadConn))
	require.False(t, Transient(errors.New("column does not exist")))
	require.False(t, Transient(nil))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "transient", VerdictTransient.String())
	assert.Equal(t, "permanent", VerdictPermanent.String())
}
