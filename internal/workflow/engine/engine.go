package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/phasegen/internal/workflow"
	"github.com/kingrea/phasegen/internal/workflow/resolver"
)

// ErrIllegalTransition is returned when a phase would move backwards or be
// attempted twice.
var ErrIllegalTransition = errors.New("workflow engine: illegal phase transition")

// ErrSaveState wraps persistence failures. The in-memory transition has
// already been applied when it is returned.
var ErrSaveState = errors.New("workflow engine: save state")

// Engine owns the run state and persists every change.
type Engine struct {
	mu    sync.Mutex
	repo  StateStore
	clock func() time.Time
	newID func() string
	state State
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator replaces the uuid run id source.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// New wires an engine to a persistence store.
func New(repo StateStore, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("workflow engine: state store is required")
	}
	engine := &Engine{
		repo:  repo,
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Start opens a new run covering phases, all not-started. The returned
// error only reports persistence problems; the in-memory run is usable
// either way.
func (e *Engine) Start(phases []workflow.PhaseDefinition) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	state := State{
		RunID:     e.newID(),
		Status:    RunStatusRunning,
		Phases:    make([]PhaseStatus, 0, len(phases)),
		StartedAt: now,
		UpdatedAt: now,
	}
	for _, def := range phases {
		status := PhaseStatus{ID: def.ID, Name: def.Name, State: PhaseNotStarted}
		for _, step := range def.Steps {
			status.Steps = append(status.Steps, StepStatus{
				ID:    step.ID,
				Key:   step.StepKey(),
				State: resolver.NodeStatePending,
			})
		}
		state.Phases = append(state.Phases, status)
	}
	e.state = state
	return state.Clone(), e.saveLocked()
}

// BeginPhase moves a phase from not-started to running.
func (e *Engine) BeginPhase(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	phase, err := e.phaseLocked(id)
	if err != nil {
		return err
	}
	if phase.State != PhaseNotStarted {
		return fmt.Errorf("%w: %s is %s", ErrIllegalTransition, id, phase.State)
	}
	now := e.clock()
	phase.State = PhaseRunning
	phase.StartedAt = &now
	return e.saveLocked()
}

// RecordStep stores the latest status of a step in a running phase.
func (e *Engine) RecordStep(phaseID string, step StepStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	phase, err := e.phaseLocked(phaseID)
	if err != nil {
		return err
	}
	if phase.State != PhaseRunning {
		return fmt.Errorf("%w: step %s recorded while %s is %s", ErrIllegalTransition, step.ID, phaseID, phase.State)
	}
	step.Placeholders = cloneStrings(step.Placeholders)
	for i := range phase.Steps {
		if phase.Steps[i].ID == step.ID {
			if step.Key == "" {
				step.Key = phase.Steps[i].Key
			}
			phase.Steps[i] = step
			return e.saveLocked()
		}
	}
	phase.Steps = append(phase.Steps, step)
	return e.saveLocked()
}

// FinishPhase closes a running phase. A failed outcome lands in
// failed-skipped, anything else in completed.
func (e *Engine) FinishPhase(id string, outcome Outcome, verdict string, cause error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	phase, err := e.phaseLocked(id)
	if err != nil {
		return err
	}
	if phase.State != PhaseRunning {
		return fmt.Errorf("%w: %s is %s", ErrIllegalTransition, id, phase.State)
	}
	now := e.clock()
	phase.State = PhaseCompleted
	if outcome == OutcomeFailed {
		phase.State = PhaseFailedSkipped
	}
	phase.Outcome = outcome
	phase.Verdict = verdict
	phase.Error = errorString(cause)
	phase.FinishedAt = &now
	return e.saveLocked()
}

// Complete marks the whole run finished.
func (e *Engine) Complete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, phase := range e.state.Phases {
		if phase.State == PhaseRunning {
			return fmt.Errorf("%w: %s still running", ErrIllegalTransition, phase.ID)
		}
	}
	e.state.Status = RunStatusComplete
	return e.saveLocked()
}

// State returns a copy of the in-memory run state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// View returns the last persisted snapshot.
func (e *Engine) View() (State, error) {
	return e.repo.Load()
}

func (e *Engine) phaseLocked(id string) (*PhaseStatus, error) {
	for i := range e.state.Phases {
		if e.state.Phases[i].ID == id {
			return &e.state.Phases[i], nil
		}
	}
	return nil, fmt.Errorf("workflow engine: phase %s is not part of run %s", id, e.state.RunID)
}

func (e *Engine) saveLocked() error {
	e.state.UpdatedAt = e.clock()
	if err := e.repo.Save(e.state.Clone()); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveState, err)
	}
	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
