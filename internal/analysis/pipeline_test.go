package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HendryAvila/reqcheck/internal/llm"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

// stub is a fake completer that answers by prompt kind and counts calls.
type stub struct {
	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
	answer  func(ctx context.Context, kind, prompt string) (string, error)
}

func (s *stub) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.answer(ctx, kindOf(prompt), prompt)
}

// kindOf tells the prompts apart by the JSON shape they ask for.
func kindOf(prompt string) string {
	switch {
	case strings.Contains(prompt, `{"suggestions"`):
		return "improve"
	case strings.Contains(prompt, `{"conflicts"`):
		return "conflict"
	case strings.Contains(prompt, `{"ambiguities"`):
		return "clarity"
	default:
		return "parse"
	}
}

func answers(m map[string]string) func(context.Context, string, string) (string, error) {
	return func(_ context.Context, kind, _ string) (string, error) {
		return m[kind], nil
	}
}

func newTestPipeline(t *testing.T, precise, fast llm.Completer, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(precise, fast, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

const twoReqs = "REQ1: Users must log in before access.\nREQ2: Users should access public pages without login."

// --- New ---

func TestNew_RejectsNilCompleters(t *testing.T) {
	if _, err := New(nil, &stub{}); err == nil {
		t.Error("expected error for nil precise completer")
	}
	if _, err := New(&stub{}, nil); err == nil {
		t.Error("expected error for nil fast completer")
	}
}

// --- Analyze: happy path ---

func TestAnalyze_ConflictScenario(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{
		"parse":   twoReqs,
		"improve": `{"suggestions": []}`,
	})}
	fast := &stub{answer: answers(map[string]string{
		"conflict": "```json\n" + `{"conflicts": [{"req1": "REQ1: Users must log in before access.", "req2": "REQ2: Users should access public pages without login.", "description": "login required vs public access"}]}` + "\n```",
		"clarity":  `{"ambiguities": []}`,
	})}

	f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(f.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(f.Conflicts))
	}
	c := f.Conflicts[0]
	if !strings.Contains(c.Req1, "REQ1") || !strings.Contains(c.Req2, "REQ2") {
		t.Errorf("conflict does not reference both requirements: %+v", c)
	}
	if f.Ambiguities == nil || len(f.Ambiguities) != 0 {
		t.Errorf("ambiguities = %#v, want empty non-nil", f.Ambiguities)
	}
	if f.Suggestions == nil || len(f.Suggestions) != 0 {
		t.Errorf("suggestions = %#v, want empty non-nil", f.Suggestions)
	}
}

func TestAnalyze_ResultAlwaysHasThreeArrays(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": twoReqs, "improve": "garbage"})}
	fast := &stub{answer: answers(map[string]string{"conflict": "nothing", "clarity": "```json\n"})}

	f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), "some input")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"conflicts":[],"ambiguities":[],"suggestions":[]}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}

func TestAnalyze_ImprovePromptCarriesFindings(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{
		"parse":   "The system shall respond fast.",
		"improve": `{"suggestions": [{"req": "The system shall respond fast.", "new_version": "The system shall respond within 200 ms."}]}`,
	})}
	fast := &stub{answer: answers(map[string]string{
		"conflict": `{"conflicts": []}`,
		"clarity":  `{"ambiguities": [{"req": "The system shall respond fast.", "issue": "fast <undefined>"}]}`,
	})}

	f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), "x y z")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(f.Suggestions) != 1 || f.Suggestions[0].NewVersion != "The system shall respond within 200 ms." {
		t.Errorf("suggestions = %+v", f.Suggestions)
	}

	var improvePrompt string
	for _, p := range precise.prompts {
		if kindOf(p) == "improve" {
			improvePrompt = p
		}
	}
	for _, check := range []string{"- The system shall respond fast.", `"issue": "fast <undefined>"`} {
		if !strings.Contains(improvePrompt, check) {
			t.Errorf("improve prompt missing %q:\n%s", check, improvePrompt)
		}
	}
}

func TestAnalyze_DropsUnusableFindings(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{
		"parse":   twoReqs,
		"improve": `{"suggestions": [{"req": "a"}, {"req": "a", "new_version": "b"}]}`,
	})}
	fast := &stub{answer: answers(map[string]string{
		"conflict": `{"conflicts": ["text", {"req1": "a"}, {"req1": 1, "req2": "b"}, {"req1": "a", "req2": "b"}]}`,
		"clarity":  `{"ambiguities": [{"issue": "no req"}, {"req": "r"}]}`,
	})}

	f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if want := []ConflictFinding{{Req1: "a", Req2: "b"}}; !reflect.DeepEqual(f.Conflicts, want) {
		t.Errorf("conflicts = %+v, want %+v", f.Conflicts, want)
	}
	if want := []AmbiguityFinding{{Req: "r"}}; !reflect.DeepEqual(f.Ambiguities, want) {
		t.Errorf("ambiguities = %+v, want %+v", f.Ambiguities, want)
	}
	if want := []SuggestionFinding{{Req: "a", NewVersion: "b"}}; !reflect.DeepEqual(f.Suggestions, want) {
		t.Errorf("suggestions = %+v, want %+v", f.Suggestions, want)
	}
}

// --- Analyze: degenerate inputs ---

func TestAnalyze_EmptyInput(t *testing.T) {
	precise := &stub{answer: answers(nil)}
	fast := &stub{answer: answers(nil)}
	p := newTestPipeline(t, precise, fast)

	for _, in := range []string{"", "   ", "\n\t \r\n"} {
		_, err := p.Analyze(context.Background(), in)
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Analyze(%q) err = %v, want ErrEmptyInput", in, err)
		}
	}
	if n := precise.calls.Load() + fast.calls.Load(); n != 0 {
		t.Errorf("completion calls = %d, want 0", n)
	}
}

func TestAnalyze_NoRequirementsSkipsLaterCalls(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": "ok\n\n-\n* 1.\n"})}
	fast := &stub{answer: answers(nil)}

	st, err := newTestPipeline(t, precise, fast).Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.Requirements) != 0 {
		t.Fatalf("requirements = %v, want none", st.Requirements)
	}
	if n := precise.calls.Load(); n != 1 {
		t.Errorf("precise calls = %d, want 1 (parse only)", n)
	}
	if n := fast.calls.Load(); n != 0 {
		t.Errorf("fast calls = %d, want 0", n)
	}
	if st.Result == nil || st.Result.Total() != 0 || st.Result.Conflicts == nil {
		t.Errorf("result = %#v, want well-formed empty", st.Result)
	}
}

// --- Analyze: failures ---

func TestAnalyze_ParseFailureStopsPipeline(t *testing.T) {
	upstream := &llm.UpstreamError{Provider: "gemini", Status: http.StatusUnauthorized, Message: "bad key"}
	precise := &stub{answer: func(context.Context, string, string) (string, error) { return "", upstream }}
	fast := &stub{answer: answers(nil)}

	f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
	if f != nil {
		t.Errorf("partial result returned: %+v", f)
	}
	if !errors.Is(err, upstream) || !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("err = %v, want the upstream error", err)
	}
	if stage, ok := FailedStage(err); !ok || stage != StageParse {
		t.Errorf("failed stage = %q, %v; want parse", stage, ok)
	}
	if n := precise.calls.Load(); n != 1 {
		t.Errorf("precise calls = %d, want 1", n)
	}
	if n := fast.calls.Load(); n != 0 {
		t.Errorf("fast calls = %d, want 0", n)
	}
}

func TestAnalyze_CheckFailureAbortsRun(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": twoReqs})}
	fast := &stub{answer: func(ctx context.Context, kind, _ string) (string, error) {
		if kind == "clarity" {
			return "", llm.ErrTimeout
		}
		return `{"conflicts": []}`, nil
	}}

	_, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if stage, _ := FailedStage(err); stage != StageClarityCheck {
		t.Errorf("failed stage = %q, want clarity_check", stage)
	}
	if n := precise.calls.Load(); n != 1 {
		t.Errorf("precise calls = %d, want 1 (improve must not run)", n)
	}
}

func TestAnalyze_CheckFailureCancelsSibling(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": twoReqs})}
	sentinel := errors.New("boom")
	fast := &stub{answer: func(ctx context.Context, kind, _ string) (string, error) {
		if kind == "conflict" {
			return "", sentinel
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "", errors.New("sibling was not cancelled")
		}
	}}

	_, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the first failure", err)
	}
	if stage, _ := FailedStage(err); stage != StageConflictCheck {
		t.Errorf("failed stage = %q, want conflict_check", stage)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	precise := &stub{answer: func(ctx context.Context, _, _ string) (string, error) { return "", ctx.Err() }}

	_, err := newTestPipeline(t, precise, &stub{answer: answers(nil)}).Analyze(ctx, twoReqs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// --- Concurrency ---

func TestAnalyze_ChecksRunConcurrently(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": twoReqs, "improve": `[]`})}

	var started sync.WaitGroup
	started.Add(2)
	both := make(chan struct{})
	go func() { started.Wait(); close(both) }()

	fast := &stub{answer: func(ctx context.Context, kind, _ string) (string, error) {
		started.Done()
		select {
		case <-both:
		case <-time.After(5 * time.Second):
			return "", errors.New("checks did not overlap")
		}
		return "[]", nil
	}}

	if _, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}

func TestAnalyze_MergeIsOrderIndependent(t *testing.T) {
	conflictOut := `{"conflicts": [{"req1": "a", "req2": "b", "description": "d"}]}`
	clarityOut := `{"ambiguities": [{"req": "a", "issue": "vague"}]}`

	run := func(slow string) *Findings {
		precise := &stub{answer: answers(map[string]string{"parse": twoReqs, "improve": `{"suggestions": []}`})}
		fast := &stub{answer: func(_ context.Context, kind, _ string) (string, error) {
			if kind == slow {
				time.Sleep(30 * time.Millisecond)
			}
			if kind == "conflict" {
				return conflictOut, nil
			}
			return clarityOut, nil
		}}
		f, err := newTestPipeline(t, precise, fast).Analyze(context.Background(), twoReqs)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		return f
	}

	a, b := run("conflict"), run("clarity")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ by completion order:\n%+v\n%+v", a, b)
	}
}

// --- Observer ---

func TestAnalyze_ObserverSeesEveryPhase(t *testing.T) {
	precise := &stub{answer: answers(map[string]string{"parse": twoReqs})}
	fast := &stub{answer: answers(nil)}
	var phases []Phase

	_, err := newTestPipeline(t, precise, fast, WithObserver(func(p Phase) { phases = append(phases, p) })).
		Analyze(context.Background(), twoReqs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []Phase{
		PhaseParsing, PhaseConflictChecking, PhaseClarityChecking,
		PhaseMerging, PhaseImproving, PhaseAggregating, PhaseDone,
	}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestAnalyze_ObserverStopsAtFailure(t *testing.T) {
	precise := &stub{answer: func(context.Context, string, string) (string, error) { return "", llm.ErrUpstream }}
	var phases []Phase

	_, _ = newTestPipeline(t, precise, &stub{answer: answers(nil)}, WithObserver(func(p Phase) { phases = append(phases, p) })).
		Analyze(context.Background(), twoReqs)
	if want := []Phase{PhaseParsing}; !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}
