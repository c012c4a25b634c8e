package pipeline

import (
	"time"

	"github.com/kingrea/phasegen/internal/workflow/engine"
	"github.com/kingrea/phasegen/internal/workflow/resolver"
)

// StepResult reports one step of a phase.
type StepResult struct {
	ID    string
	Key   string
	State resolver.NodeState
	// Path is where the document was written, empty when the step never got
	// that far.
	Path string
	// Placeholders lists "<phase>/<key>" references rendered as the
	// placeholder.
	Placeholders []string
	Verdict      Verdict
	// WriteErr is a document write failure. The value is still stored.
	WriteErr error
	Err      error
	Elapsed  time.Duration
	// Throttled is set when the step was ready but waited for the phase's
	// parallel limit.
	Throttled bool
}

// PhaseResult reports one phase.
type PhaseResult struct {
	Phase   string
	Name    string
	Folder  string
	Outcome engine.Outcome
	Verdict Verdict
	Steps   []StepResult
	// Placeholders is the sorted union over every step.
	Placeholders []string
	// Warnings collects persistence problems that degraded the phase.
	Warnings []string
	// Err is the cause of a failed phase.
	Err error
}

// Step returns the result for a step id.
func (r PhaseResult) Step(id string) (StepResult, bool) {
	for _, step := range r.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return StepResult{}, false
}

// Report is the outcome of a run.
type Report struct {
	RunID  string
	Phases []PhaseResult
	State  engine.State
}

// Vector returns the phase-state vector of the run.
func (r Report) Vector() []engine.PhaseState {
	return r.State.Vector()
}

// Phase returns the result for a phase id.
func (r Report) Phase(id string) (PhaseResult, bool) {
	for _, phase := range r.Phases {
		if phase.Phase == id {
			return phase, true
		}
	}
	return PhaseResult{}, false
}

// Failed lists the ids of failed phases in run order.
func (r Report) Failed() []string {
	var ids []string
	for _, phase := range r.Phases {
		if phase.Outcome == engine.OutcomeFailed {
			ids = append(ids, phase.Phase)
		}
	}
	return ids
}

func outcomeFor(result PhaseResult) engine.Outcome {
	if result.Err != nil {
		return engine.OutcomeFailed
	}
	if len(result.Placeholders) > 0 || len(result.Warnings) > 0 || result.Verdict == VerdictFail {
		return engine.OutcomeDegraded
	}
	return engine.OutcomeSuccess
}
