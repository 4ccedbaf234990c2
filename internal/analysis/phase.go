package analysis

import "fmt"

// --- Stage enum ---

// Stage names one unit of pipeline work. StageError reports it.
type Stage string

const (
	StageParse         Stage = "parse"
	StageConflictCheck Stage = "conflict_check"
	StageClarityCheck  Stage = "clarity_check"
	StageMerge         Stage = "merge"
	StageImprove       Stage = "improve"
	StageAggregate     Stage = "aggregate"

	// StageReview is the single completion of a one-pass review.
	StageReview Stage = "review"
)

// --- Phase enum ---

// Phase is a state of the orchestrator's state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseParsing          Phase = "parsing"
	PhaseConflictChecking Phase = "conflict_checking"
	PhaseClarityChecking  Phase = "clarity_checking"
	PhaseMerging          Phase = "merging"
	PhaseImproving        Phase = "improving"
	PhaseAggregating      Phase = "aggregating"
	PhaseReviewing        Phase = "reviewing"
	PhaseDone             Phase = "done"
)

// transitions lists the legal successors of each phase. The two check
// phases are entered together and both lead to merging. A one-pass review
// goes straight from reviewing to done.
var transitions = map[Phase][]Phase{
	PhaseIdle:             {PhaseParsing, PhaseReviewing},
	PhaseParsing:          {PhaseConflictChecking, PhaseClarityChecking},
	PhaseConflictChecking: {PhaseMerging},
	PhaseClarityChecking:  {PhaseMerging},
	PhaseMerging:          {PhaseImproving},
	PhaseImproving:        {PhaseAggregating},
	PhaseAggregating:      {PhaseDone},
	PhaseReviewing:        {PhaseDone},
}

// CanTransition reports whether the state machine may move from one phase
// to the other.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// tracker walks the state machine for one run and reports every phase it
// enters to the observer.
type tracker struct {
	current  []Phase
	observer func(Phase)
}

func newTracker(observer func(Phase)) *tracker {
	return &tracker{current: []Phase{PhaseIdle}, observer: observer}
}

// enter moves to the given phases, which are entered together. Every phase
// must be a legal successor of at least one current phase.
func (t *tracker) enter(phases ...Phase) {
	for _, to := range phases {
		legal := false
		for _, from := range t.current {
			if CanTransition(from, to) {
				legal = true
				break
			}
		}
		if !legal {
			panic(fmt.Sprintf("analysis: illegal phase transition %v -> %s", t.current, to))
		}
	}
	t.current = phases
	if t.observer == nil {
		return
	}
	for _, p := range phases {
		t.observer(p)
	}
}
