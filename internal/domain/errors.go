package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCacheMiss indicates no cached entry was found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache store could not be reached.
	// Callers treat it as a miss.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrUpstreamTimeout indicates an upstream call exceeded its timeout.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamRejected indicates the circuit breaker refused the call.
	ErrUpstreamRejected = errors.New("upstream rejected: circuit open")

	// ErrBudgetExhausted marks a service as excluded by budget steering.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrAllServicesExhausted indicates every service in a chain failed.
	ErrAllServicesExhausted = errors.New("all services exhausted")

	// ErrUnknownService indicates a service name missing from the catalog.
	ErrUnknownService = errors.New("unknown service")

	// ErrUnknownRequest indicates no stream exists for a request id.
	ErrUnknownRequest = errors.New("unknown request")
)

// UpstreamError is a failure reported by an upstream provider.
type UpstreamError struct {
	Service    string
	StatusCode int
	Retryable  bool
	Err        error
}

// NewUpstreamError classifies a provider failure by its HTTP status code.
// Zero status codes are network errors and retryable.
func NewUpstreamError(service string, statusCode int, err error) *UpstreamError {
	retryable := statusCode == 0 ||
		statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError

	return &UpstreamError{
		Service:    service,
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        err,
	}
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error (HTTP %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed upstream call may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) {
		return true
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Retryable
	}
	return false
}
