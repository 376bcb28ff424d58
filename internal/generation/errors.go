// Package generation defines the completion-endpoint port shared by the
// analysis and FIR passes, and the error taxonomy its backends report.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed completion call.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindRejected  Kind = "rejected"
	KindServer    Kind = "server"
	KindMalformed Kind = "malformed"
)

var (
	ErrNetwork           = errors.New("completion endpoint unreachable")
	ErrTimeout           = errors.New("completion call timed out")
	ErrCanceled          = errors.New("completion call canceled")
	ErrAuth              = errors.New("completion endpoint rejected credentials")
	ErrRateLimited       = errors.New("completion endpoint rate limit exceeded")
	ErrRejected          = errors.New("completion endpoint rejected request")
	ErrServer            = errors.New("completion endpoint server error")
	ErrMalformedResponse = errors.New("malformed completion response")
)

var kindSentinels = map[Kind]error{
	KindNetwork:   ErrNetwork,
	KindTimeout:   ErrTimeout,
	KindCanceled:  ErrCanceled,
	KindAuth:      ErrAuth,
	KindRateLimit: ErrRateLimited,
	KindRejected:  ErrRejected,
	KindServer:    ErrServer,
	KindMalformed: ErrMalformedResponse,
}

// Error is returned by every Completer backend. errors.Is matches it against
// the sentinel for its Kind, and against the wrapped cause.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s completion failed (%s)", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	}
	return false
}

// KindForStatus maps an HTTP status code from a completion endpoint.
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServer
	default:
		return KindRejected
	}
}

// ContextKind maps a context error to a Kind. ok is false for other errors.
func ContextKind(err error) (Kind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, context.Canceled):
		return KindCanceled, true
	}
	return "", false
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
