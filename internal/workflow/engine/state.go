package engine

import (
	"time"

	"github.com/kingrea/phasegen/internal/workflow/resolver"
)

// RunStatus enumerates coarse run phases.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
)

// PhaseState is the lifecycle position of one phase within a run.
type PhaseState string

const (
	PhaseNotStarted    PhaseState = "not-started"
	PhaseRunning       PhaseState = "running"
	PhaseCompleted     PhaseState = "completed"
	PhaseFailedSkipped PhaseState = "failed-skipped"
)

// Terminal reports whether the phase can no longer change.
func (s PhaseState) Terminal() bool {
	return s == PhaseCompleted || s == PhaseFailedSkipped
}

// Outcome summarizes how a finished phase went.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// State captures the persisted snapshot of a pipeline run.
type State struct {
	RunID     string        `json:"run_id"`
	Status    RunStatus     `json:"status"`
	Phases    []PhaseStatus `json:"phases"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PhaseStatus is one entry of the phase-state vector.
type PhaseStatus struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	State      PhaseState   `json:"state"`
	Outcome    Outcome      `json:"outcome,omitempty"`
	Verdict    string       `json:"verdict,omitempty"`
	Error      string       `json:"error,omitempty"`
	Steps      []StepStatus `json:"steps,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// StepStatus records the result of a single step.
type StepStatus struct {
	ID           string             `json:"id"`
	Key          string             `json:"key"`
	State        resolver.NodeState `json:"state"`
	Path         string             `json:"path,omitempty"`
	Error        string             `json:"error,omitempty"`
	Placeholders []string           `json:"placeholders,omitempty"`
}

// Vector returns the phase states in run order.
func (s State) Vector() []PhaseState {
	out := make([]PhaseState, len(s.Phases))
	for i, phase := range s.Phases {
		out[i] = phase.State
	}
	return out
}

// Phase finds a phase entry by id.
func (s State) Phase(id string) (PhaseStatus, bool) {
	for _, phase := range s.Phases {
		if phase.ID == id {
			return phase, true
		}
	}
	return PhaseStatus{}, false
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Phases = make([]PhaseStatus, len(s.Phases))
	for i, phase := range s.Phases {
		copyPhase := phase
		if len(phase.Steps) > 0 {
			copyPhase.Steps = make([]StepStatus, len(phase.Steps))
			for j, step := range phase.Steps {
				step.Placeholders = cloneStrings(step.Placeholders)
				copyPhase.Steps[j] = step
			}
		}
		copyPhase.StartedAt = cloneTime(phase.StartedAt)
		copyPhase.FinishedAt = cloneTime(phase.FinishedAt)
		out.Phases[i] = copyPhase
	}
	return out
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
