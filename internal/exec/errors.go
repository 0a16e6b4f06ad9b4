package exec

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// server-side error codes that indicate the engine itself is in trouble
// rather than the statement being wrong.
var unavailableSQLErrors = map[uint16]struct{}{
	1040: {}, // too many connections
	1053: {}, // server shutdown in progress
	1105: {}, // unknown server error
	1205: {}, // lock wait timeout
}

// IsUnavailable reports whether the error means the execution engine could
// not serve the call at all. Callers treat these as recoverable infra
// failures, never as a statement-level verdict.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if code, ok := MySQLErrCode(err); ok {
		_, unavailable := unavailableSQLErrors[code]
		return unavailable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "invalid connection") ||
		strings.Contains(msg, "broken pipe")
}

// IsTimeout reports whether the error came from a statement deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// MySQLErrCode extracts the server error code, if any.
func MySQLErrCode(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

// IsStatementError reports whether the error is attributable to the
// statement itself (syntax, unknown symbols) rather than the engine.
func IsStatementError(err error) bool {
	code, ok := MySQLErrCode(err)
	if !ok {
		return false
	}
	switch code {
	case 1064, 1054, 1146: // syntax, unknown column, missing table
		return true
	}
	return false
}
