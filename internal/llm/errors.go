package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoBackendAvailable means every backend was unconfigured, cooling down,
// or failed transiently. Terminal for the trial that triggered it, distinct
// from any single backend's failure.
var ErrNoBackendAvailable = errors.New("no backend available")

// BackendError is a failed call to one backend. Transient failures drive the
// circuit breaker and failover; permanent ones (auth, bad request) signal a
// configuration problem and propagate immediately.
type BackendError struct {
	Provider  Provider
	Status    int // HTTP status, 0 for network errors
	Message   string
	Transient bool
}

func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s backend error (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Provider, e.Message)
}

// newStatusError classifies an HTTP error status. Rate limits, timeouts and
// server errors are capacity problems worth retrying elsewhere; everything
// else in the 4xx range is a configuration problem.
func newStatusError(provider Provider, status int, body string) *BackendError {
	transient := status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
	return &BackendError{
		Provider:  provider,
		Status:    status,
		Message:   body,
		Transient: transient,
	}
}

// newTransportError wraps a network-level failure as transient, except for
// caller-initiated cancellation which passes through untouched.
func newTransportError(provider Provider, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &BackendError{
		Provider:  provider,
		Message:   err.Error(),
		Transient: true,
	}
}

// IsTransient reports whether err is a transient backend failure.
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}

// IsPermanent reports whether err is a permanent backend failure.
func IsPermanent(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && !be.Transient
}
