package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned by a Backend that has nothing persisted yet.
var ErrNoSnapshot = errors.New("memory: snapshot not found")

// Backend persists whole-store snapshots.
type Backend interface {
	Name() string
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}

// FileBackend stores the snapshot as a single JSON document.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Name identifies the backend in logs.
func (b *FileBackend) Name() string { return "file" }

// Path returns the JSON document location.
func (b *FileBackend) Path() string { return b.path }

// Save writes the snapshot through a temp file and rename.
func (b *FileBackend) Save(_ context.Context, snap Snapshot) error {
	if b.path == "" {
		return fmt.Errorf("memory: file backend path is empty")
	}
	if snap == nil {
		snap = Snapshot{}
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(encoded, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads the JSON document. A missing file yields ErrNoSnapshot.
func (b *FileBackend) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return DecodeSnapshot(data)
}

// Close is a no-op for files.
func (b *FileBackend) Close() error { return nil }

// DecodeSnapshot parses a {phase: {key: value}} JSON document. String values
// are kept verbatim; any other JSON value is kept as its compact JSON text.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("memory: snapshot document is empty")
	}
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("memory: decode snapshot: %w", err)
	}
	snap := make(Snapshot, len(raw))
	for phase, values := range raw {
		decoded := make(map[string]string, len(values))
		for key, value := range values {
			text, err := rawText(value)
			if err != nil {
				return nil, fmt.Errorf("memory: decode %s/%s: %w", phase, key, err)
			}
			decoded[key] = text
		}
		snap[phase] = decoded
	}
	return snap, nil
}

func rawText(value json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", err
		}
		return text, nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return "", err
	}
	return compact.String(), nil
}

// BackendConfig selects and configures a snapshot backend.
type BackendConfig struct {
	Kind  string
	Path  string
	Redis RedisConfig
}

// Backend kinds accepted by OpenBackend.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// OpenBackend constructs the backend named by cfg.Kind. BackendNone returns a
// nil backend and no error.
func OpenBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case "", BackendNone:
		return nil, nil
	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("memory: file backend requires a path")
		}
		return NewFileBackend(cfg.Path), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("memory: sqlite backend requires a path")
		}
		backend, err := NewSQLiteBackend(cfg.Path)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case BackendRedis:
		backend, err := NewRedisBackend(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("memory: unknown backend %q", cfg.Kind)
	}
}
