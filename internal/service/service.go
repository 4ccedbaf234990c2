// Package service wraps the analysis pipeline with model selection,
// document extraction and history persistence. HTTP handlers, MCP tools,
// the CLI and the inbox watcher all go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/docs"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/logging"
)

// Errors for request hints the service cannot honor.
var (
	ErrUnknownModel = errors.New("service: unknown model")
	ErrUnknownMode  = errors.New("service: unknown mode")
)

// Mode selects how an analysis is run.
type Mode string

const (
	// ModeFull runs the staged pipeline.
	ModeFull Mode = "full"
	// ModeQuick asks the model for all three lists in one call.
	ModeQuick Mode = "quick"
)

// ParseMode maps a request's mode hint to a Mode. Blank means ModeFull.
func ParseMode(hint string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(hint))); m {
	case "":
		return ModeFull, nil
	case ModeFull, ModeQuick:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (use full or quick)", ErrUnknownMode, hint)
	}
}

// Options are the per-request hints. Zero values select the defaults.
type Options struct {
	Model string
	Mode  string
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Analyzer runs one analysis. *analysis.Pipeline implements it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Findings, error)
}

// Factory builds the Analyzer for a model and mode.
type Factory func(model string, mode Mode) (Analyzer, error)

// Saver persists finished analyses. *history.Store implements it.
type Saver interface {
	Save(p history.SaveParams) (int64, error)
}

// Models decides which models a request may name.
type Models interface {
	DefaultModel() string
	ModelAllowed(model string) bool
}

// Outcome is the result of one analysis request. ID is 0 when the analysis
// could not be saved. InputBytes is the size of the analyzed text.
type Outcome struct {
	ID         int64
	Findings   *analysis.Findings
	Model      string
	Mode       Mode
	InputBytes int
	Duration   time.Duration
}

// Service runs analyses and records them.
type Service struct {
	store   Saver
	factory Factory
	models  Models
	logger  *slog.Logger

	mu        sync.Mutex
	pipelines map[pipelineKey]Analyzer
}

type pipelineKey struct {
	model string
	mode  Mode
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service. store may be nil, in which case nothing is saved.
func New(store Saver, factory Factory, models Models, opts ...Option) *Service {
	s := &Service{
		store:     store,
		factory:   factory,
		models:    models,
		logger:    logging.Discard(),
		pipelines: make(map[pipelineKey]Analyzer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeText analyzes pasted text.
func (s *Service) AnalyzeText(ctx context.Context, text string, opts Options) (*Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, analysis.ErrEmptyInput
	}
	return s.run(ctx, text, "", opts)
}

// AnalyzeDocument extracts the text of an uploaded document and analyzes it.
func (s *Service) AnalyzeDocument(ctx context.Context, filename string, data []byte, opts Options) (*Outcome, error) {
	text, err := docs.Extract(data, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	return s.analyzeExtracted(ctx, text, filename, opts)
}

// AnalyzeFile reads the document at path and analyzes it. A missing file
// fails with docs.ErrNotFound.
func (s *Service) AnalyzeFile(ctx context.Context, path string, opts Options) (*Outcome, error) {
	text, err := docs.ExtractFile(path)
	if err != nil {
		return nil, err
	}
	return s.analyzeExtracted(ctx, text, path, opts)
}

func (s *Service) analyzeExtracted(ctx context.Context, text, filename string, opts Options) (*Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, analysis.ErrEmptyInput
	}
	return s.run(ctx, text, filepath.Base(filename), opts)
}

// ResolveModel maps a request's model hint to a configured model.
func (s *Service) ResolveModel(hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return s.models.DefaultModel(), nil
	}
	if !s.models.ModelAllowed(hint) {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, hint)
	}
	return hint, nil
}

func (s *Service) run(ctx context.Context, text, fileName string, opts Options) (*Outcome, error) {
	model, err := s.ResolveModel(opts.Model)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	p, err := s.pipeline(model, mode)
	if err != nil {
		return nil, err
	}

	start := timeNow()
	f, err := p.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Findings:   f,
		Model:      model,
		Mode:       mode,
		InputBytes: len(text),
		Duration:   timeNow().Sub(start),
	}

	if s.store == nil {
		return out, nil
	}
	id, err := s.store.Save(history.SaveParams{
		TextInput:      text,
		FileName:       fileName,
		Findings:       f,
		ModelUsed:      model,
		ProcessingTime: out.Duration,
	})
	if err != nil {
		s.logger.Warn("analysis not saved", "err", err)
		return out, nil
	}
	out.ID = id
	s.logger.Info("analysis saved",
		"id", id,
		"model", model,
		"mode", string(mode),
		"file", fileName,
		"dur_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// pipeline returns the cached Analyzer for model and mode, building it on
// first use.
func (s *Service) pipeline(model string, mode Mode) (Analyzer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pipelineKey{model: model, mode: mode}
	if p, ok := s.pipelines[key]; ok {
		return p, nil
	}
	p, err := s.factory(model, mode)
	if err != nil {
		return nil, fmt.Errorf("service: building %s pipeline for %s: %w", mode, model, err)
	}
	s.pipelines[key] = p
	return p, nil
}
