package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.2"
)

// OllamaOptions configures a local Ollama client.
type OllamaOptions struct {
	BaseURL string
	Model   string
}

// Ollama calls a local Ollama server's non-streaming generate API.
type Ollama struct {
	hc      doer
	baseURL string
	model   string
}

// NewOllama creates an Ollama client with defaults for empty options.
func NewOllama(opts OllamaOptions) *Ollama {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOllamaBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultOllamaModel
	}
	return &Ollama{
		hc:      &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
	}
}

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Complete produces a single non-streamed response for prompt.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("ollama: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := send(ctx, o.hc, "ollama", req)
	if err != nil {
		return "", err
	}

	var gr ollamaGenerateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", &UpstreamError{Provider: "ollama", Status: http.StatusOK, Message: "undecodable body", Err: ErrInvalidResponse}
	}
	if gr.Error != "" {
		return "", &UpstreamError{Provider: "ollama", Status: http.StatusOK, Message: gr.Error, Err: ErrInvalidResponse}
	}
	return gr.Response, nil
}
