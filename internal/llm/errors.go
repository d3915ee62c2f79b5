package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned before any network call when no API
	// key is configured.
	ErrMissingCredential = errors.New("llm: upstream credential not configured")

	// ErrEmptyCompletion is returned when the provider answered 2xx with no text.
	ErrEmptyCompletion = errors.New("llm: empty upstream completion")

	// ErrStreamInterrupted is returned by a stream whose body ended before
	// the provider signalled completion.
	ErrStreamInterrupted = errors.New("llm: stream ended before completion")

	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("llm: upstream circuit open")
)

// HTTPError is a non-2xx provider response. Body is truncated to 1 MiB.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("llm: upstream status %d: %s", e.StatusCode, truncate(e.Body, 256))
}

// Retryable reports whether the status suggests a transient failure.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
