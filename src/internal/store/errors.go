package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

// IsUnavailable reports whether err means the database could not be reached
// or refused work, as opposed to a bad query or missing row.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case pqErr.Code.Class() == "08": // connection_exception
			return true
		case pqErr.Code.Class() == "53": // insufficient_resources
			return true
		case strings.HasPrefix(code, "57P"): // admin/crash shutdown, cannot_connect_now
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
