package analysis

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/HendryAvila/reqcheck/internal/extract"
	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/templates"
)

// Reviewer is the one-pass analysis: a single precise completion asked for
// all three lists at once. It trades the staged pipeline's focus for one
// model call and accepts the same options as New.
type Reviewer struct {
	p *Pipeline
}

// NewReviewer builds a Reviewer over c.
func NewReviewer(c llm.Completer, opts ...Option) (*Reviewer, error) {
	p, err := New(c, c, opts...)
	if err != nil {
		return nil, err
	}
	return &Reviewer{p: p}, nil
}

// Analyze reviews text in one completion. Blank text fails with
// ErrEmptyInput before any call; a completion failure is a *StageError for
// StageReview. When the reply holds no JSON at all the result is empty and
// carries the reply in RawResponse.
func (r *Reviewer) Analyze(ctx context.Context, text string) (*Findings, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s := r.p.stages
	logger := s.logger.With("run_id", uuid.NewString())
	tr := newTracker(r.p.observer)
	start := timeNow()

	tr.enter(PhaseReviewing)
	logger.Debug("stage started", "stage", string(StageReview))
	raw, err := s.complete(ctx, s.precise, templates.Review, templates.ParseData{Input: text})
	if err != nil {
		return nil, stageFailed(logger, StageReview, err)
	}

	f := aggregate(
		decodeFindings[ConflictFinding](logger, StageReview, raw, keyConflicts),
		decodeFindings[AmbiguityFinding](logger, StageReview, raw, keyAmbiguities),
		decodeFindings[SuggestionFinding](logger, StageReview, raw, keySuggestions),
	)
	if !extract.Recoverable(raw) {
		logger.Warn("review reply held no JSON", "bytes", len(raw))
		f.RawResponse = strings.TrimSpace(raw)
	}

	tr.enter(PhaseDone)
	logger.Info("review finished",
		"conflicts", len(f.Conflicts),
		"ambiguities", len(f.Ambiguities),
		"suggestions", len(f.Suggestions),
		"dur_ms", timeNow().Sub(start).Milliseconds(),
	)
	return f, nil
}
