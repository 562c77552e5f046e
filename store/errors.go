package store

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrUnavailable is returned while the store cannot be reached, including
	// calls rationed by the provider's retry budget.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when a statement addressed a record that does not exist.
	ErrNotFound = errors.New("painpoint not found")

	// ErrUnknownDriver is returned by Open for drivers other than sqlite3 and postgres.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// isUnreachable classifies connection errors that mean the store is down or
// cannot be opened at all, as opposed to a failing statement.
func isUnreachable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrCantOpen {
		return true
	}

	return strings.Contains(err.Error(), "sql: unknown driver")
}
