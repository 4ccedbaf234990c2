// Package config loads reqcheck's settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in llm.provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// HistoryFile is the SQLite database name inside the data directory.
const HistoryFile = "history.db"

// Config is the full reqcheck configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LLMConfig selects the completion provider and models.
// PreciseModel serves parse and improve; FastModel serves the two checks.
type LLMConfig struct {
	Provider      string        `yaml:"provider"`
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	PreciseModel  string        `yaml:"precise_model"`
	FastModel     string        `yaml:"fast_model"`
	AllowedModels []string      `yaml:"allowed_models"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	Retries       int           `yaml:"retries"`
}

// StorageConfig locates persistent data.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WatchConfig configures the inbox watcher. An empty OutputDir writes
// reports next to the source document.
type WatchConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 180 * time.Second,
		},
		LLM: LLMConfig{
			Provider:      ProviderGemini,
			PreciseModel:  "gemini-2.5-pro",
			FastModel:     "gemini-2.5-flash",
			AllowedModels: []string{"gemini-2.5-pro", "gemini-2.5-flash"},
			CallTimeout:   60 * time.Second,
			Retries:       1,
		},
		Storage: StorageConfig{DataDir: "~/.reqcheck"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns ~/.reqcheck/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".reqcheck", "config.yaml")
	}
	return filepath.Join(home, ".reqcheck", "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file at path falls back to
// the defaults instead of failing.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REQCHECK_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("REQCHECK_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("REQCHECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGemini
	}
	if c.LLM.FastModel == "" {
		c.LLM.FastModel = c.LLM.PreciseModel
	}
	if len(c.LLM.AllowedModels) == 0 && c.LLM.PreciseModel != "" {
		c.LLM.AllowedModels = []string{c.LLM.PreciseModel}
	}
	c.Storage.DataDir = expandHome(c.Storage.DataDir)
	c.Watch.OutputDir = expandHome(c.Watch.OutputDir)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("config: invalid llm.provider %q: must be one of: gemini, ollama", c.LLM.Provider)
	}
	if c.LLM.PreciseModel == "" {
		return errors.New("config: llm.precise_model is required")
	}
	if c.LLM.CallTimeout <= 0 {
		return fmt.Errorf("config: llm.call_timeout must be positive, got %s", c.LLM.CallTimeout)
	}
	if c.LLM.Retries < 0 || c.LLM.Retries > 1 {
		return fmt.Errorf("config: llm.retries must be 0 or 1, got %d", c.LLM.Retries)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.New("config: server timeouts must be positive")
	}
	if c.Storage.DataDir == "" {
		return errors.New("config: storage.data_dir is required")
	}
	return nil
}

// LLMConfigured reports whether the completion provider has what it needs
// to make calls.
func (c *Config) LLMConfigured() bool {
	return c.LLM.Provider == ProviderOllama || c.LLM.APIKey != ""
}

// DefaultModel is the model used when a request names none.
func (c *Config) DefaultModel() string { return c.LLM.PreciseModel }

// ModelAllowed reports whether model may be requested. The configured
// precise and fast models are always allowed.
func (c *Config) ModelAllowed(model string) bool {
	if model == "" {
		return false
	}
	return model == c.LLM.PreciseModel || model == c.LLM.FastModel || slices.Contains(c.LLM.AllowedModels, model)
}

// HistoryPath returns the history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Storage.DataDir, HistoryFile)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
