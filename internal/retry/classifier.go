package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// SQLSTATE classes whose every code is transient.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
var transientClasses = []string{
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention
}

// Individual transient codes outside the classes above.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

var transientSyscallErrors = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"connection pool exhausted",
	"context deadline exceeded",
}

// PostgreSQLErrorClassifier implements pgload.ErrorClassifier for pgx errors.
type PostgreSQLErrorClassifier struct{}

// NewPostgreSQLErrorClassifier creates a new PostgreSQL error classifier.
func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

// IsTransient reports whether err is worth another connect attempt.
// A server error is judged by its SQLSTATE only.
func (c *PostgreSQLErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientCode(pgErr.Code)
	}

	return isNetworkError(err) || hasTransientMessage(err)
}

func isTransientCode(code string) bool {
	for _, class := range transientClasses {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return transientCodes[code]
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	if opErr.Timeout() || opErr.Temporary() {
		return true
	}
	for _, target := range transientSyscallErrors {
		if errors.Is(opErr.Err, target) {
			return true
		}
	}
	return false
}

func hasTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

var _ pgload.ErrorClassifier = (*PostgreSQLErrorClassifier)(nil)
