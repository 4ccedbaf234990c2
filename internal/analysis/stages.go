package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/HendryAvila/reqcheck/internal/extract"
	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/templates"
)

// Result keys the check and improve prompts ask the model to use.
const (
	keyConflicts   = "conflicts"
	keyAmbiguities = "ambiguities"
	keySuggestions = "suggestions"
)

// stages holds what the individual stages need. Each method reads its
// inputs as arguments and returns its output; none touches State.
type stages struct {
	precise  llm.Completer
	fast     llm.Completer
	renderer *templates.Renderer
	logger   *slog.Logger
}

// parse asks the precise model to split the document into requirements.
func (s *stages) parse(ctx context.Context, input string) ([]Requirement, error) {
	prompt, err := s.renderer.Render(templates.Parse, templates.ParseData{Input: input})
	if err != nil {
		return nil, err
	}
	raw, err := s.precise.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseRequirements(raw), nil
}

// conflictCheck asks the fast model for contradicting requirement pairs.
func (s *stages) conflictCheck(ctx context.Context, reqs []Requirement) ([]ConflictFinding, error) {
	if len(reqs) == 0 {
		return []ConflictFinding{}, nil
	}
	raw, err := s.complete(ctx, s.fast, templates.Conflict, templates.CheckData{Requirements: bulletList(reqs)})
	if err != nil {
		return nil, err
	}
	return decodeFindings[ConflictFinding](s.logger, StageConflictCheck, raw, keyConflicts), nil
}

// clarityCheck asks the fast model for ambiguous requirements.
func (s *stages) clarityCheck(ctx context.Context, reqs []Requirement) ([]AmbiguityFinding, error) {
	if len(reqs) == 0 {
		return []AmbiguityFinding{}, nil
	}
	raw, err := s.complete(ctx, s.fast, templates.Clarity, templates.CheckData{Requirements: bulletList(reqs)})
	if err != nil {
		return nil, err
	}
	return decodeFindings[AmbiguityFinding](s.logger, StageClarityCheck, raw, keyAmbiguities), nil
}

// merge is the join point of the two checks. It republishes both outputs
// and the requirements unchanged.
func merge(conflicts []ConflictFinding, ambiguities []AmbiguityFinding, reqs []Requirement) ([]ConflictFinding, []AmbiguityFinding, []Requirement) {
	return conflicts, ambiguities, reqs
}

// improve asks the precise model to rewrite problematic requirements.
func (s *stages) improve(ctx context.Context, reqs []Requirement, conflicts []ConflictFinding, ambiguities []AmbiguityFinding) ([]SuggestionFinding, error) {
	if len(reqs) == 0 {
		return []SuggestionFinding{}, nil
	}
	conflictsJSON, err := indentJSON(conflicts)
	if err != nil {
		return nil, err
	}
	ambiguitiesJSON, err := indentJSON(ambiguities)
	if err != nil {
		return nil, err
	}
	raw, err := s.complete(ctx, s.precise, templates.Improve, templates.ImproveData{
		Requirements: bulletList(reqs),
		Conflicts:    conflictsJSON,
		Ambiguities:  ambiguitiesJSON,
	})
	if err != nil {
		return nil, err
	}
	return decodeFindings[SuggestionFinding](s.logger, StageImprove, raw, keySuggestions), nil
}

// aggregate packages the three lists into the terminal result.
func aggregate(conflicts []ConflictFinding, ambiguities []AmbiguityFinding, suggestions []SuggestionFinding) *Findings {
	return (&Findings{
		Conflicts:   conflicts,
		Ambiguities: ambiguities,
		Suggestions: suggestions,
	}).Normalize()
}

func (s *stages) complete(ctx context.Context, c llm.Completer, name string, data any) (string, error) {
	prompt, err := s.renderer.Render(name, data)
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, prompt)
}

// decodeFindings extracts and types the records under key. Unusable output
// is not an error; it is logged and yields fewer (possibly zero) findings.
func decodeFindings[T interface{ valid() bool }](logger *slog.Logger, stage Stage, raw, key string) []T {
	items := extract.JSON(raw, key)
	found := keepValid(extract.Decode[T](items))
	if dropped := len(items) - len(found); dropped > 0 {
		logger.Debug("dropped unusable findings",
			"stage", string(stage),
			"records", len(items),
			"dropped", dropped,
		)
	}
	return found
}

// indentJSON renders v for a prompt: two-space indent, no HTML escaping.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("analysis: encoding prompt data: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
