// Package analysis runs the requirements review pipeline.
//
// One invocation takes a requirements document and produces three lists of
// findings: conflicting requirement pairs, ambiguous requirements, and
// suggested rewrites. The work is split into stages:
//
//	parse → {conflict_check, clarity_check} → merge → improve → aggregate
//
// The two checks are independent and run concurrently. Every LLM-backed
// stage is one templated completion followed by best-effort JSON recovery;
// unparsable model output degrades to an empty list, while completion
// failures abort the whole run.
package analysis

// --- Data model ---

// Requirement is one atomic requirement statement extracted by Parse.
type Requirement string

// ConflictFinding is a pairwise contradiction between two requirements,
// referenced by text.
type ConflictFinding struct {
	Req1        string `json:"req1"`
	Req2        string `json:"req2"`
	Description string `json:"description"`
}

// AmbiguityFinding flags one vague or underspecified requirement.
type AmbiguityFinding struct {
	Req   string `json:"req"`
	Issue string `json:"issue"`
}

// SuggestionFinding pairs an original requirement with a clearer rewrite.
type SuggestionFinding struct {
	Req        string `json:"req"`
	NewVersion string `json:"new_version"`
}

func (c ConflictFinding) valid() bool   { return c.Req1 != "" && c.Req2 != "" }
func (a AmbiguityFinding) valid() bool  { return a.Req != "" }
func (s SuggestionFinding) valid() bool { return s.Req != "" && s.NewVersion != "" }

// Findings is the terminal result of one run. The lists are never nil.
//
// RawResponse is set only by a one-pass review whose model reply held no
// JSON at all, so the caller can show what the model said instead.
type Findings struct {
	Conflicts   []ConflictFinding   `json:"conflicts"`
	Ambiguities []AmbiguityFinding  `json:"ambiguities"`
	Suggestions []SuggestionFinding `json:"suggestions"`
	RawResponse string              `json:"raw_response,omitempty"`
}

// EmptyFindings returns a result with all three lists empty.
func EmptyFindings() *Findings {
	return &Findings{
		Conflicts:   []ConflictFinding{},
		Ambiguities: []AmbiguityFinding{},
		Suggestions: []SuggestionFinding{},
	}
}

// Normalize replaces nil lists with empty ones so the JSON form always
// carries three arrays.
func (f *Findings) Normalize() *Findings {
	if f.Conflicts == nil {
		f.Conflicts = []ConflictFinding{}
	}
	if f.Ambiguities == nil {
		f.Ambiguities = []AmbiguityFinding{}
	}
	if f.Suggestions == nil {
		f.Suggestions = []SuggestionFinding{}
	}
	return f
}

// Total returns the number of findings across all three lists.
func (f *Findings) Total() int {
	return len(f.Conflicts) + len(f.Ambiguities) + len(f.Suggestions)
}

// State is the accumulator threaded through one run. Each stage replaces
// only its own field. ConflictCheck and ClarityCheck write disjoint fields
// and never read each other's output.
type State struct {
	InputText    string
	Requirements []Requirement
	Conflicts    []ConflictFinding
	Ambiguities  []AmbiguityFinding
	Suggestions  []SuggestionFinding
	Result       *Findings
}

func newState(input string) *State {
	return &State{
		InputText:    input,
		Requirements: []Requirement{},
		Conflicts:    []ConflictFinding{},
		Ambiguities:  []AmbiguityFinding{},
		Suggestions:  []SuggestionFinding{},
	}
}

// keepValid filters out findings whose identifying text is empty.
func keepValid[T interface{ valid() bool }](in []T) []T {
	out := make([]T, 0, len(in))
	for _, f := range in {
		if f.valid() {
			out = append(out, f)
		}
	}
	return out
}
