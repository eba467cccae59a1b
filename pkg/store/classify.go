package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/pg-sharding/fedrouter/pkg/models/fderror"
)

// commonCode classifies errors every driver may surface.
func commonCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fderror.FDR_STORE_UNAVAILABLE
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fderror.FDR_STORE_UNAVAILABLE
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fderror.FDR_STORE_UNAVAILABLE
	}
	return ""
}

// Classify turns any error raised by store into a FedError attributed to
// store and op. Unknown errors are treated as rejections so that callers
// never retry blindly.
func Classify(c Conn, store, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *fderror.FedError
	if errors.As(err, &fe) {
		if fe.Store == "" {
			return fe.WithStore(store, op)
		}
		return err
	}
	code := ""
	if c != nil {
		code = c.Classify(err)
	}
	if code == "" {
		code = commonCode(err)
	}
	if code == "" {
		code = fderror.FDR_STORE_REJECTED
	}
	return fderror.Wrap(code, store, op, err)
}
