package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTimeout means no result with the command's id arrived within the
	// read timeout. The connection stays usable.
	ErrTimeout = errors.New("cdp: timed out waiting for result")

	// ErrConnectionLost means the control channel failed. Nothing more can
	// be sent on it.
	ErrConnectionLost = errors.New("cdp: connection lost")

	// ErrClosed is returned by a Client after Close.
	ErrClosed = errors.New("cdp: client closed")

	// ErrNoTarget is returned when discovery finds no controllable page.
	ErrNoTarget = errors.New("cdp: no controllable page found")
)

// ProtocolError is an error object carried in a correlated result.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
	Data    json.RawMessage
}

func (e *ProtocolError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("cdp: %s failed: %s (%d): %s", e.Method, e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("cdp: %s failed: %s (%d)", e.Method, e.Message, e.Code)
}

// ConnectionError is returned by Dial when the endpoint cannot be reached or
// the websocket handshake fails.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cdp: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsFatal reports whether err means the channel can no longer be used or
// the caller gave up. Timeouts and protocol errors are not fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
