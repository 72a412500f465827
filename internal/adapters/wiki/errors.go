package wiki

import (
	"errors"
	"fmt"
)

// Sentinel kinds for upstream failures.
var (
	ErrUpstreamStatus   = errors.New("unexpected upstream status")
	ErrRetriesExhausted = errors.New("upstream retries exhausted")
)

// Error is a failure reported to API clients verbatim.
type Error struct {
	Message    string
	StatusCode int // zero when no response was received
	kind       error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.kind }

// UserMessage returns the text shown to API clients.
func (e *Error) UserMessage() string { return e.Message }

func statusError(code int) *Error {
	return &Error{
		Message:    fmt.Sprintf("Could not get response from wikipedia because of HTTP %d", code),
		StatusCode: code,
		kind:       ErrUpstreamStatus,
	}
}

func exhaustedError() *Error {
	return &Error{
		Message: "Could not get response from wikipedia (timeout)",
		kind:    ErrRetriesExhausted,
	}
}
