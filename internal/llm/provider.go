package llm

import (
	"fmt"
	"strings"
	"time"
)

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// ProviderConfig describes one configured completion client.
type ProviderConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	CallTimeout time.Duration
	Retries     int
}

// New builds a Completer for pc, wrapped so that every attempt gets its
// own deadline and transient failures get at most one retry.
func New(pc ProviderConfig) (Completer, error) {
	var base Completer
	switch strings.ToLower(strings.TrimSpace(pc.Provider)) {
	case ProviderGemini, "":
		g, err := NewGemini(GeminiOptions{BaseURL: pc.BaseURL, Model: pc.Model, APIKey: pc.APIKey})
		if err != nil {
			return nil, err
		}
		base = g
	case ProviderOllama:
		base = NewOllama(OllamaOptions{BaseURL: pc.BaseURL, Model: pc.Model})
	default:
		return nil, fmt.Errorf("llm: unknown provider %q: must be one of: gemini, ollama", pc.Provider)
	}
	return WithRetry(WithTimeout(base, pc.CallTimeout), pc.Retries), nil
}
