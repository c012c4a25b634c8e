package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestGetReturnsStoredValueOrDefault(t *testing.T) {
	store := New()
	store.Set("initiation", "vision_document", "vision")
	if got := store.Get("initiation", "vision_document", "fallback"); got != "vision" {
		t.Fatalf("get = %q, want vision", got)
	}
	if got := store.Get("initiation", "missing", "fallback"); got != "fallback" {
		t.Fatalf("get missing = %q, want fallback", got)
	}
	if got := store.Get("nowhere", "missing", ""); got != "" {
		t.Fatalf("get missing phase = %q, want empty", got)
	}
	if _, ok := store.Lookup("nowhere", "missing"); ok {
		t.Fatalf("lookup reported a value for an unset pair")
	}
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	store := New()
	store.Set("design", "hld", "first")
	store.Set("design", "hld", "second")
	if got := store.Get("design", "hld", ""); got != "second" {
		t.Fatalf("get = %q, want second", got)
	}
	if n := len(store.Phase("design")); n != 1 {
		t.Fatalf("phase size = %d, want 1", n)
	}
}

func TestPhasesAreIndependentNamespaces(t *testing.T) {
	store := New()
	store.Set("p1", "k", "a")
	store.Set("p2", "k", "b")
	if store.Get("p1", "k", "") != "a" || store.Get("p2", "k", "") != "b" {
		t.Fatalf("namespaces interfered: p1=%q p2=%q", store.Get("p1", "k", ""), store.Get("p2", "k", ""))
	}
	if !store.Has("p1", "k") || store.Has("p3", "k") {
		t.Fatalf("has reported wrong presence")
	}
}

func TestPhaseReturnsDetachedCopy(t *testing.T) {
	store := New()
	store.Set("testing", "test_plan", "plan")
	values := store.Phase("testing")
	values["test_plan"] = "mutated"
	if got := store.Get("testing", "test_plan", ""); got != "plan" {
		t.Fatalf("store mutated through phase copy: %q", got)
	}
	empty := store.Phase("absent")
	if empty == nil || len(empty) != 0 {
		t.Fatalf("absent phase should return an empty map, got %#v", empty)
	}
}

func TestDeletePhaseAndMerge(t *testing.T) {
	store := New()
	store.Set("draft", "a", "1")
	store.Set("draft", "b", "2")
	store.Set("final", "b", "old")
	store.Set("final", "c", "3")

	store.MergePhases("draft", "final")
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	if got := store.Phase("final"); !reflect.DeepEqual(got, want) {
		t.Fatalf("merged phase = %v, want %v", got, want)
	}
	store.MergePhases("missing", "final")
	if got := store.Phase("final"); !reflect.DeepEqual(got, want) {
		t.Fatalf("merge from absent source changed target: %v", got)
	}

	store.DeletePhase("draft")
	store.DeletePhase("draft")
	if store.Has("draft", "a") {
		t.Fatalf("draft phase should be gone")
	}
	if got := store.Phases(); !reflect.DeepEqual(got, []string{"final"}) {
		t.Fatalf("phases = %v", got)
	}
}

func TestResetClearsEveryPhase(t *testing.T) {
	store := New()
	store.Set("a", "k", "v")
	store.Set("b", "k", "v")
	store.Reset()
	for _, phase := range []string{"a", "b"} {
		if n := len(store.Phase(phase)); n != 0 {
			t.Fatalf("phase %s still has %d values", phase, n)
		}
	}
}

func TestSaveAndLoadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "memory.json")
	store := New()
	store.Set("request", "system_request", "build a tracker")
	store.Set("initiation", "vision_document", "line one\nline \"two\"")
	if err := store.SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	fresh := New()
	if err := fresh.LoadFromFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(fresh.Snapshot(), store.Snapshot()) {
		t.Fatalf("round trip mismatch: %v vs %v", fresh.Snapshot(), store.Snapshot())
	}
}

func TestLoadMissingFileIsNoOp(t *testing.T) {
	store := New()
	store.Set("keep", "k", "v")
	if err := store.LoadFromFile(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if store.Get("keep", "k", "") != "v" {
		t.Fatalf("store changed after loading a missing file")
	}
}

func TestLoadCorruptFileLeavesStoreUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New()
	store.Set("keep", "k", "v")
	if err := store.LoadFromFile(path); err == nil {
		t.Fatalf("expected a decode error")
	}
	if store.Get("keep", "k", "") != "v" {
		t.Fatalf("store changed after a failed load")
	}
}

func TestLoadAcceptsNonStringValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	doc := `{"planning": {"budget": 1200, "owners": ["a", "b"], "note": "ok"}, "empty": {}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New()
	if err := store.LoadFromFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := store.Get("planning", "budget", ""); got != "1200" {
		t.Fatalf("budget = %q", got)
	}
	if got := store.Get("planning", "owners", ""); got != `["a","b"]` {
		t.Fatalf("owners = %q", got)
	}
	if got := store.Get("planning", "note", ""); got != "ok" {
		t.Fatalf("note = %q", got)
	}
}

func TestSaveToUnwritablePathReportsError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := New()
	store.Set("a", "b", "c")
	if err := store.SaveToFile(filepath.Join(blocker, "memory.json")); err == nil {
		t.Fatalf("expected an error writing beneath a regular file")
	}
	if store.Get("a", "b", "") != "c" {
		t.Fatalf("failed save must not touch the store")
	}
}

func TestOpenBackendKinds(t *testing.T) {
	backend, err := OpenBackend(BackendConfig{Kind: BackendNone})
	if err != nil || backend != nil {
		t.Fatalf("none backend = %v, %v", backend, err)
	}
	if _, err := OpenBackend(BackendConfig{Kind: "tape"}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	file, err := OpenBackend(BackendConfig{Kind: BackendFile, Path: filepath.Join(t.TempDir(), "m.json")})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, err := file.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("empty file backend load err = %v", err)
	}
}
