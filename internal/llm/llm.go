// Package llm provides the completion clients the analysis pipeline talks to.
//
// A Completer turns one prompt into one block of raw model text. Concrete
// clients (Gemini, Ollama) are thin HTTP adapters; cross-cutting behavior
// such as per-call deadlines and the single bounded retry lives in small
// decorators so every provider gets the same semantics.
package llm

import "context"

// Completer issues a single prompt→text completion request.
// Implementations must be safe for concurrent use and must honor ctx.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f(ctx, prompt).
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
