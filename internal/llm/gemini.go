package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"
)

// GeminiOptions configures a Gemini generateContent client.
type GeminiOptions struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature *float64
}

// Gemini calls the Google Generative Language API.
type Gemini struct {
	hc          doer
	endpoint    string
	apiKey      string
	model       string
	temperature *float64
}

// NewGemini creates a Gemini client. The API key is required.
func NewGemini(opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini: missing api key", ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGeminiBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	endpoint := strings.TrimRight(opts.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(opts.Model) + ":generateContent"

	return &Gemini{
		hc:          &http.Client{Timeout: defaultHTTPTimeout},
		endpoint:    endpoint,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends prompt as a single user turn and returns the text of the
// first candidate (all of its text parts concatenated).
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.temperature != nil {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: g.temperature}
	}
	payload, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("gemini: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	raw, err := send(ctx, g.hc, "gemini", req)
	if err != nil {
		return "", err
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", &UpstreamError{Provider: "gemini", Status: http.StatusOK, Message: "undecodable body", Err: ErrInvalidResponse}
	}
	if len(gr.Candidates) == 0 {
		return "", &UpstreamError{Provider: "gemini", Status: http.StatusOK, Message: "no candidates", Err: ErrInvalidResponse}
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", &UpstreamError{Provider: "gemini", Status: http.StatusOK, Message: "empty candidate", Err: ErrInvalidResponse}
	}
	return b.String(), nil
}
