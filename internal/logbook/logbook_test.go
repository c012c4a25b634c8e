package logbook

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestScopedEntriesParseBack(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "logs", "journal.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	phase := book.Scoped("run-1").Scoped("design")
	phase.Warn("step %s used placeholders", "hld")
	book.Error("plain")

	lines, total := book.Tail(10)
	if total != 2 {
		t.Fatalf("total = %d", total)
	}
	entry, ok := ParseEntry(lines[0])
	if !ok {
		t.Fatalf("could not parse %q", lines[0])
	}
	if entry.Level != LevelWarn || entry.Scope != "run-1/design" || entry.Message != "step hld used placeholders" {
		t.Fatalf("entry = %+v", entry)
	}
	plain, ok := ParseEntry(lines[1])
	if !ok || plain.Level != LevelError || plain.Scope != "" || plain.Message != "plain" {
		t.Fatalf("plain entry = %+v", plain)
	}
	if _, ok := ParseEntry("garbage"); ok {
		t.Fatalf("garbage should not parse")
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil tail = %v %d", lines, total)
	}
	if book.Scoped("x") != nil || book.Path() != "" {
		t.Fatalf("nil logbook should stay nil")
	}
}
