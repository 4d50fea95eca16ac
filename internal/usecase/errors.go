package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorMalformedRequest  ErrorCode = "MALFORMED_REQUEST"
	ErrorGrantIssuance     ErrorCode = "GRANT_ISSUANCE_ERROR"
	ErrorUpstreamRetrieval ErrorCode = "UPSTREAM_RETRIEVAL_ERROR"
	ErrorUpstreamInference ErrorCode = "UPSTREAM_INFERENCE_ERROR"
	ErrorSessionStore      ErrorCode = "SESSION_STORE_ERROR"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

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

// upstreamError classifies a failed collaborator call, promoting HTTP 429
// responses to ErrorRateLimited.
func upstreamError(code ErrorCode, prefix string, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, prefix+"_rate_limited", err)
	}
	return newError(code, prefix+"_error", err)
}
