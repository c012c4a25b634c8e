package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var openDB = sql.Open

// SQLiteBackend keeps snapshots in a SQLite database, one row per value.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create sqlite dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}
	b := &SQLiteBackend{db: db, path: path}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memory_values (
			phase TEXT NOT NULL,
			key   TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (phase, key)
		);
		CREATE TABLE IF NOT EXISTS memory_phases (
			phase TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS memory_snapshot (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			saved_at TEXT NOT NULL
		);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Name identifies the backend in logs.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Save replaces the stored snapshot inside one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, snap Snapshot) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{"DELETE FROM memory_values", "DELETE FROM memory_phases"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	phaseStmt, err := tx.PrepareContext(ctx, "INSERT INTO memory_phases (phase) VALUES (?)")
	if err != nil {
		return err
	}
	defer phaseStmt.Close()
	valueStmt, err := tx.PrepareContext(ctx, "INSERT INTO memory_values (phase, key, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer valueStmt.Close()
	for phase, values := range snap {
		if _, err := phaseStmt.ExecContext(ctx, phase); err != nil {
			return fmt.Errorf("insert phase %s: %w", phase, err)
		}
		for key, value := range values {
			if _, err := valueStmt.ExecContext(ctx, phase, key, value); err != nil {
				return fmt.Errorf("insert %s/%s: %w", phase, key, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO memory_snapshot (id, saved_at) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at",
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Load reads the stored snapshot, or ErrNoSnapshot when none was saved.
func (b *SQLiteBackend) Load(ctx context.Context) (Snapshot, error) {
	var savedAt string
	err := b.db.QueryRowContext(ctx, "SELECT saved_at FROM memory_snapshot WHERE id = 1").Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	snap := Snapshot{}
	phases, err := b.db.QueryContext(ctx, "SELECT phase FROM memory_phases")
	if err != nil {
		return nil, err
	}
	for phases.Next() {
		var phase string
		if err := phases.Scan(&phase); err != nil {
			phases.Close()
			return nil, err
		}
		snap[phase] = map[string]string{}
	}
	phases.Close()
	if err := phases.Err(); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, "SELECT phase, key, value FROM memory_values")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var phase, key, value string
		if err := rows.Scan(&phase, &key, &value); err != nil {
			return nil, err
		}
		values, ok := snap[phase]
		if !ok {
			values = map[string]string{}
			snap[phase] = values
		}
		values[key] = value
	}
	return snap, rows.Err()
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
