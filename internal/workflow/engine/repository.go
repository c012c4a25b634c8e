package engine

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStateNotFound is returned when no persisted run state exists yet.
var ErrStateNotFound = errors.New("workflow engine: state not found")

// StateStore persists run state snapshots.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// Repository stores run state as an indented JSON file.
type Repository struct {
	path string
}

// NewRepository creates a repository that reads and writes path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the backing file.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted state if present.
func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Save writes the run state to disk with best-effort atomicity.
func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// MemoryRepository keeps state in process. Useful for tests and dry runs.
type MemoryRepository struct {
	state *State
}

// Load returns the last saved state.
func (m *MemoryRepository) Load() (State, error) {
	if m.state == nil {
		return State{}, ErrStateNotFound
	}
	return m.state.Clone(), nil
}

// Save keeps a copy of state.
func (m *MemoryRepository) Save(state State) error {
	clone := state.Clone()
	m.state = &clone
	return nil
}
