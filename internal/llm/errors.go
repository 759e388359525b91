package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies generation failures
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindSafetyBlock    ErrorKind = "safety_block"
	KindTransient      ErrorKind = "transient"
	KindEmptyResponse  ErrorKind = "empty_response"
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Sentinels for errors.Is
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrSafetyBlock    = errors.New("blocked by content safety filter")
	ErrTransient      = errors.New("transient network failure")
	ErrEmptyResponse  = errors.New("empty or malformed response")
	ErrInvalidRequest = errors.New("invalid request")
)

// Error is a classified provider failure
type Error struct {
	Kind       ErrorKind
	Provider   string
	Model      string
	StatusCode int

	// Partial is text the provider produced before failing, if any
	Partial string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Model, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// Retryable reports whether the same request may succeed if repeated
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTransient
}

// IsRetryable reports whether err is a retryable provider error
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// KindOf returns the kind of a provider error, or "" for other errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// PartialOf returns partial text carried by a provider error
func PartialOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Partial
	}
	return ""
}

func sentinel(kind ErrorKind) error {
	switch kind {
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimit:
		return ErrRateLimited
	case KindSafetyBlock:
		return ErrSafetyBlock
	case KindTransient:
		return ErrTransient
	case KindEmptyResponse:
		return ErrEmptyResponse
	case KindInvalidRequest:
		return ErrInvalidRequest
	}
	return nil
}

// kindForStatus maps an HTTP status to an error kind
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout, status >= 500:
		return KindTransient
	default:
		return KindInvalidRequest
	}
}

// statusError builds a classified error from an HTTP status
func statusError(provider, model string, status int, err error) *Error {
	return &Error{
		Kind:       kindForStatus(status),
		Provider:   provider,
		Model:      model,
		StatusCode: status,
		Err:        err,
	}
}

// transportError classifies a failure that happened before any HTTP status
// was received. Cancellation by the caller is returned unchanged so it is
// never retried.
func transportError(ctx context.Context, provider, model string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		err = fmt.Errorf("network: %w", err)
	}

	return &Error{
		Kind:     KindTransient,
		Provider: provider,
		Model:    model,
		Err:      err,
	}
}

func emptyResponse(provider, model string, err error) *Error {
	if err == nil {
		err = errors.New("no content returned")
	}
	return &Error{
		Kind:     KindEmptyResponse,
		Provider: provider,
		Model:    model,
		Err:      err,
	}
}

func safetyBlock(provider, model, reason, partial string) *Error {
	return &Error{
		Kind:     KindSafetyBlock,
		Provider: provider,
		Model:    model,
		Partial:  partial,
		Err:      fmt.Errorf("blocked: %s", reason),
	}
}
