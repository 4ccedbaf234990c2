package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// defaultHTTPTimeout is a safety net under the per-call deadline set by
// WithTimeout; it only fires when no deadline was attached.
const defaultHTTPTimeout = 120 * time.Second

// doer is the slice of *http.Client the providers need; tests swap it.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// send executes req and returns the body of a 2xx response. Non-2xx replies
// become *UpstreamError; transport failures are wrapped the same way unless
// they come from ctx, which is returned untouched.
func send(ctx context.Context, hc doer, provider string, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, errors.Join(ErrTimeout, err)
		}
		return nil, &UpstreamError{Provider: provider, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{
			Provider: provider,
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(slurp)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &UpstreamError{Provider: provider, Status: resp.StatusCode, Err: err}
	}
	return body, nil
}
