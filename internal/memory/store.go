// Package memory holds the phase-namespaced artifact store shared by pipeline
// steps. Values are plain strings keyed by phase and key; snapshots of the
// whole store can be persisted to a file, SQLite or Redis backend.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Snapshot is a detached copy of the store contents.
type Snapshot map[string]map[string]string

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for phase, values := range s {
		out[phase] = cloneValues(values)
	}
	return out
}

// Len reports the number of values across every phase.
func (s Snapshot) Len() int {
	total := 0
	for _, values := range s {
		total += len(values)
	}
	return total
}

// Store is a concurrency-safe phase -> key -> value mapping.
type Store struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	logger *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger attaches a logger used for persistence reports.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data:   map[string]map[string]string{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "memory"))
	return s
}

// Set inserts or overwrites a value, creating the phase namespace if needed.
func (s *Store) Set(phase, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.data[phase]
	if !ok {
		values = map[string]string{}
		s.data[phase] = values
	}
	values[key] = value
	s.logger.Debug("value stored", zap.String("phase", phase), zap.String("key", key), zap.Int("bytes", len(value)))
}

// Get returns the stored value or def when the phase/key pair is unset.
func (s *Store) Get(phase, key, def string) string {
	if value, ok := s.Lookup(phase, key); ok {
		return value
	}
	return def
}

// Lookup returns the stored value and whether it was present.
func (s *Store) Lookup(phase, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[phase][key]
	return value, ok
}

// Has reports whether a value exists for the phase/key pair.
func (s *Store) Has(phase, key string) bool {
	_, ok := s.Lookup(phase, key)
	return ok
}

// Phase returns a copy of every value stored under phase. The map is empty,
// never nil, when the phase is absent.
func (s *Store) Phase(phase string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := cloneValues(s.data[phase])
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// Phases lists populated phase namespaces in sorted order.
func (s *Store) Phases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phases := make([]string, 0, len(s.data))
	for phase := range s.data {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	return phases
}

// DeletePhase drops a phase namespace. Missing phases are ignored.
func (s *Store) DeletePhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, phase)
}

// MergePhases copies every value from source into target, overwriting keys
// that already exist in target. Nothing happens when source is absent.
func (s *Store) MergePhases(source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.data[source]
	if !ok || source == target {
		return
	}
	dst, ok := s.data[target]
	if !ok {
		dst = make(map[string]string, len(src))
		s.data[target] = dst
	}
	for key, value := range src {
		dst[key] = value
	}
}

// Reset clears every phase.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = map[string]map[string]string{}
}

// Snapshot returns a deep copy of the store contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot(s.data).Clone()
}

// Replace swaps the store contents for a copy of snap.
func (s *Store) Replace(snap Snapshot) {
	clone := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = clone
}

// Persist writes a snapshot of the store to backend. Failures are logged and
// returned; the in-memory store is never affected.
func (s *Store) Persist(ctx context.Context, backend Backend) error {
	if backend == nil {
		return fmt.Errorf("memory: backend is required")
	}
	snap := s.Snapshot()
	if err := backend.Save(ctx, snap); err != nil {
		s.logger.Error("persist snapshot failed", zap.String("backend", backend.Name()), zap.Error(err))
		return fmt.Errorf("memory: persist to %s: %w", backend.Name(), err)
	}
	s.logger.Info("snapshot persisted",
		zap.String("backend", backend.Name()),
		zap.Int("phases", len(snap)),
		zap.Int("values", snap.Len()),
	)
	return nil
}

// Restore replaces the store contents with the snapshot held by backend. When
// the backend has no snapshot the store is left untouched and nil is returned.
// Any other failure leaves the store unchanged.
func (s *Store) Restore(ctx context.Context, backend Backend) error {
	if backend == nil {
		return fmt.Errorf("memory: backend is required")
	}
	snap, err := backend.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			s.logger.Debug("no snapshot to restore", zap.String("backend", backend.Name()))
			return nil
		}
		s.logger.Error("restore snapshot failed", zap.String("backend", backend.Name()), zap.Error(err))
		return fmt.Errorf("memory: restore from %s: %w", backend.Name(), err)
	}
	s.Replace(snap)
	s.logger.Info("snapshot restored",
		zap.String("backend", backend.Name()),
		zap.Int("phases", len(snap)),
		zap.Int("values", snap.Len()),
	)
	return nil
}

// SaveToFile serializes the store to a JSON document at path.
func (s *Store) SaveToFile(path string) error {
	return s.Persist(context.Background(), NewFileBackend(path))
}

// LoadFromFile replaces the store with the JSON document at path when it
// exists. Parse and read failures leave the store unchanged.
func (s *Store) LoadFromFile(path string) error {
	return s.Restore(context.Background(), NewFileBackend(path))
}

func cloneValues(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
