package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retryBackoff is the pause before the single retry. Tests shorten it.
var retryBackoff = 500 * time.Millisecond

// WithTimeout attaches a deadline of d to every call made through c.
// Expiry of that deadline is reported as ErrTimeout; cancellation of the
// caller's own context is passed through unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		out, err := c.Complete(callCtx, prompt)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return out, err
	})
}

// WithRetry allows at most one extra attempt when the first one fails with
// a transient upstream error. retries is clamped to 0..1.
func WithRetry(c Completer, retries int) Completer {
	if retries <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		out, err := c.Complete(ctx, prompt)
		if err == nil || !IsTransient(err) {
			return out, err
		}

		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(retryBackoff):
		}
		return c.Complete(ctx, prompt)
	})
}
