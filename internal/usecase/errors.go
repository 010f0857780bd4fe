package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorPayment      ErrorCode = "PAYMENT_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// ErrNoHandler is reported when no rule accepts a request.
var ErrNoHandler = errors.New("usecase: no handler accepts the request")

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// classify returns the code and reason carried by err, defaulting to an
// internal error for anything unclassified.
func classify(err error) (ErrorCode, string) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code, ue.Reason
	}
	if errors.Is(err, ErrNoHandler) {
		return ErrorInvalidInput, "no_handler"
	}
	return ErrorInternal, "unclassified"
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
