package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every provider.
var (
	// ErrUpstream matches any failure reported by (or on the way to) the
	// model backend: auth, quota, 5xx, transport errors.
	ErrUpstream = errors.New("llm: upstream error")

	// ErrTimeout marks a call that exceeded its per-call deadline.
	ErrTimeout = errors.New("llm: call timed out")

	// ErrRateLimited matches upstream 429 responses. It is also an ErrUpstream.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrInvalidResponse marks a 2xx reply without usable text.
	ErrInvalidResponse = errors.New("llm: invalid response")

	// ErrNotConfigured means the provider lacks credentials.
	ErrNotConfigured = errors.New("llm: provider not configured")
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 4 << 10

// UpstreamError carries the minimal diagnostics of a failed upstream call.
// Message is the (truncated) raw body; it is for logs only and must not be
// forwarded to end users verbatim.
type UpstreamError struct {
	Provider string
	Status   int // 0 for transport failures
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s upstream: %v", e.Provider, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s upstream %d: %s", e.Provider, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s upstream %d", e.Provider, e.Status)
	}
}

// Unwrap exposes the underlying transport or content error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstream, and 429s match ErrRateLimited.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// IsTransient reports whether err is worth one more attempt: transport
// failures, 408, 429 and 5xx. Timeouts, cancellation and content errors
// are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	switch {
	case ue.Status == 0:
		return true
	case ue.Status == http.StatusRequestTimeout, ue.Status == http.StatusTooManyRequests:
		return true
	case ue.Status/100 == 5:
		return true
	}
	return false
}
