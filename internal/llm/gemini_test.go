package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGeminiServer(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGemini(GeminiOptions{BaseURL: srv.URL, Model: "gemini-test", APIKey: "k-123"})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(GeminiOptions{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing api key: err = %v, want ErrNotConfigured", err)
	}
}

func TestGemini_Complete_SendsPromptAndJoinsParts(t *testing.T) {
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "k-123" {
			t.Errorf("api key header = %q", got)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"foo "},{"text":"bar"}]}}]}`))
	})

	got, err := g.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "foo bar" {
		t.Errorf("Complete = %q, want %q", got, "foo bar")
	}
}

func TestGemini_Complete_ServerErrorIsUpstream(t *testing.T) {
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted for project secret-123", http.StatusServiceUnavailable)
	})

	_, err := g.Complete(context.Background(), "x")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %#v, want UpstreamError 503", err)
	}
	if !IsTransient(err) {
		t.Error("503 should be transient")
	}
}

func TestGemini_Complete_AuthErrorNotTransient(t *testing.T) {
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := g.Complete(context.Background(), "x")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if IsTransient(err) {
		t.Error("403 should not be transient")
	}
}

func TestGemini_Complete_RateLimited(t *testing.T) {
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Complete(context.Background(), "x")
	if !errors.Is(err, ErrRateLimited) || !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrRateLimited and ErrUpstream", err)
	}
}

func TestGemini_Complete_NoCandidates(t *testing.T) {
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := g.Complete(context.Background(), "x")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
	if IsTransient(err) {
		t.Error("content errors must not be transient")
	}
}
