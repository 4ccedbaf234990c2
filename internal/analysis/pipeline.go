package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/templates"
)

// Pipeline runs the analysis stages. A Pipeline holds no per-run state and
// is safe for concurrent use as long as its completers are.
type Pipeline struct {
	stages   stages
	observer func(Phase)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for stage progress. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.stages.logger = l
		}
	}
}

// WithRenderer overrides the prompt renderer.
func WithRenderer(r *templates.Renderer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.stages.renderer = r
		}
	}
}

// WithObserver registers fn to be called on every phase the run enters.
// fn is always called from the goroutine running Analyze or Run.
func WithObserver(fn func(Phase)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// New builds a Pipeline. precise serves Parse and Improve; fast serves the
// two checks.
func New(precise, fast llm.Completer, opts ...Option) (*Pipeline, error) {
	if precise == nil || fast == nil {
		return nil, errors.New("analysis: precise and fast completers are required")
	}
	p := &Pipeline{
		stages: stages{
			precise: precise,
			fast:    fast,
			logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stages.renderer == nil {
		r, err := templates.NewRenderer()
		if err != nil {
			return nil, err
		}
		p.stages.renderer = r
	}
	return p, nil
}

// Analyze runs the pipeline over text and returns its findings.
// It returns ErrEmptyInput for blank text, and a *StageError when a stage
// fails. No partial result is ever returned.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*Findings, error) {
	st, err := p.Run(ctx, text)
	if err != nil {
		return nil, err
	}
	return st.Result, nil
}

// Run is Analyze, returning the final state including the requirements.
func (p *Pipeline) Run(ctx context.Context, text string) (*State, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s := p.stages
	s.logger = s.logger.With("run_id", uuid.NewString())
	tr := newTracker(p.observer)
	st := newState(text)
	start := timeNow()

	tr.enter(PhaseParsing)
	reqs, err := timed(s.logger, StageParse, func() ([]Requirement, error) {
		return s.parse(ctx, st.InputText)
	})
	if err != nil {
		return nil, stageFailed(s.logger, StageParse, err)
	}
	st.Requirements = reqs

	// Each branch writes only its own variable; Wait is the merge barrier.
	tr.enter(PhaseConflictChecking, PhaseClarityChecking)
	var (
		conflicts   []ConflictFinding
		ambiguities []AmbiguityFinding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := timed(s.logger, StageConflictCheck, func() ([]ConflictFinding, error) {
			return s.conflictCheck(gctx, st.Requirements)
		})
		if err != nil {
			return &StageError{Stage: StageConflictCheck, Err: err}
		}
		conflicts = out
		return nil
	})
	g.Go(func() error {
		out, err := timed(s.logger, StageClarityCheck, func() ([]AmbiguityFinding, error) {
			return s.clarityCheck(gctx, st.Requirements)
		})
		if err != nil {
			return &StageError{Stage: StageClarityCheck, Err: err}
		}
		ambiguities = out
		return nil
	})
	if err := g.Wait(); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return nil, stageFailed(s.logger, se.Stage, se.Err)
		}
		return nil, err
	}

	tr.enter(PhaseMerging)
	st.Conflicts, st.Ambiguities, st.Requirements = merge(conflicts, ambiguities, st.Requirements)

	tr.enter(PhaseImproving)
	suggestions, err := timed(s.logger, StageImprove, func() ([]SuggestionFinding, error) {
		return s.improve(ctx, st.Requirements, st.Conflicts, st.Ambiguities)
	})
	if err != nil {
		return nil, stageFailed(s.logger, StageImprove, err)
	}
	st.Suggestions = suggestions

	tr.enter(PhaseAggregating)
	st.Result = aggregate(st.Conflicts, st.Ambiguities, st.Suggestions)

	tr.enter(PhaseDone)
	s.logger.Info("analysis finished",
		"requirements", len(st.Requirements),
		"conflicts", len(st.Result.Conflicts),
		"ambiguities", len(st.Result.Ambiguities),
		"suggestions", len(st.Result.Suggestions),
		"dur_ms", timeNow().Sub(start).Milliseconds(),
	)
	return st, nil
}

// timed runs one stage and logs its duration and output size.
func timed[T any](logger *slog.Logger, stage Stage, fn func() ([]T, error)) ([]T, error) {
	start := timeNow()
	logger.Debug("stage started", "stage", string(stage))
	out, err := fn()
	if err != nil {
		return nil, err
	}
	logger.Debug("stage finished",
		"stage", string(stage),
		"count", len(out),
		"dur_ms", timeNow().Sub(start).Milliseconds(),
	)
	return out, nil
}

func stageFailed(logger *slog.Logger, stage Stage, err error) error {
	logger.Warn("stage failed", "stage", string(stage), "err", err)
	return &StageError{Stage: stage, Err: err}
}
