package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrEmptyResponse is returned by clients when the service answered without a
// usable candidate.
var ErrEmptyResponse = errors.New("no choices in response")

// ErrSourceTooLarge is returned when a scanner does not fit in one request.
var ErrSourceTooLarge = errors.New("source too large for one request")

// apiError is a non-200 answer from an HTTP model service.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable is true for rate limits and server errors.
func (e *apiError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// retryable classifies a client error for the orchestrator's retry policy.
func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
