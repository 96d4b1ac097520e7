package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitError is returned after retries are exhausted. RetryAfter
// carries the last Retry-After the remote sent, if any.
type RateLimitError struct {
	API        string
	Attempts   int
	RetryAfter time.Duration
	Last       error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s after %d attempts: %v", e.API, e.Attempts, e.Last)
}

func (e *RateLimitError) Unwrap() error {
	return e.Last
}

// HTTPError is a non-retryable HTTP failure surfaced to the caller.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string // truncated response body for diagnostics
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %s: %s", e.Status, e.Body)
}
