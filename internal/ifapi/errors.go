package ifapi

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidResponseFormat means the upstream broke the {errorCode, result} contract.
	ErrInvalidResponseFormat = errors.New("invalid response format")
	// ErrAirportNotFound means the airport lookup returned 404 or unusable data.
	ErrAirportNotFound = errors.New("airport not found")
	// ErrNotFound is a 404 on any other endpoint.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is an HTTP 429 from the upstream.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork covers transport failures and 5xx responses.
	ErrNetwork = errors.New("network error")
	// ErrFetchTimeout means a single request exceeded the configured deadline.
	ErrFetchTimeout = errors.New("fetch timeout")
	// ErrUpstreamStatus is any other unexpected HTTP status.
	ErrUpstreamStatus = errors.New("unexpected upstream status")
)

// APIError describes a failed upstream call
type APIError struct {
	Endpoint   string
	StatusCode int
	ErrorCode  int
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %v (status %d)", e.Endpoint, e.Err, e.StatusCode)
	case e.ErrorCode != 0:
		return fmt.Sprintf("%s: %v (errorCode %d)", e.Endpoint, e.Err, e.ErrorCode)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should stop periodic refreshing rather than be
// retried on the next tick.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}

// RetryAfter returns the upstream's Retry-After hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}
