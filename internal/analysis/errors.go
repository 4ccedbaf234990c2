package analysis

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the input text is empty after trimming.
// No completion call is made in that case.
var ErrEmptyInput = errors.New("analysis: input text is empty")

// StageError reports which stage aborted a run. Err is the completion
// failure (llm.ErrUpstream, llm.ErrTimeout, or a context error) and is
// reachable through errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage carried by err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
