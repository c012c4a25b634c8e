package memory

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func genSnapshot() *rapid.Generator[Snapshot] {
	return rapid.Custom(func(t *rapid.T) Snapshot {
		phases := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z][a-z0-9_]{0,11}`), 0, 6, rapid.ID[string]).Draw(t, "phases")
		snap := make(Snapshot, len(phases))
		for _, phase := range phases {
			snap[phase] = rapid.MapOfN(
				rapid.StringMatching(`[a-z][a-z_]{0,15}`),
				rapid.String(),
				0, 8,
			).Draw(t, "values-"+phase)
		}
		return snap
	})
}

func fill(store *Store, snap Snapshot) {
	for phase, values := range snap {
		for key, value := range values {
			store.Set(phase, key, value)
		}
	}
}

func TestPropertyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	iteration := 0
	rapid.Check(t, func(rt *rapid.T) {
		iteration++
		snap := genSnapshot().Draw(rt, "snapshot")
		store := New()
		fill(store, snap)
		path := filepath.Join(dir, fmt.Sprintf("snap-%d.json", iteration))
		if err := store.SaveToFile(path); err != nil {
			rt.Fatalf("save: %v", err)
		}
		fresh := New()
		if err := fresh.LoadFromFile(path); err != nil {
			rt.Fatalf("load: %v", err)
		}
		want := store.Snapshot()
		got := fresh.Snapshot()
		for phase, values := range want {
			if len(values) == 0 {
				continue
			}
			if !reflect.DeepEqual(got[phase], values) {
				rt.Fatalf("phase %s: got %v want %v", phase, got[phase], values)
			}
		}
	})
}

func TestPropertyMergeIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		snap := genSnapshot().Draw(rt, "snapshot")
		source := rapid.StringMatching(`[a-z]{1,4}`).Draw(rt, "source")
		target := rapid.StringMatching(`[a-z]{1,4}`).Draw(rt, "target")
		store := New()
		fill(store, snap)
		store.MergePhases(source, target)
		once := store.Phase(target)
		store.MergePhases(source, target)
		twice := store.Phase(target)
		if !reflect.DeepEqual(once, twice) {
			rt.Fatalf("merge not idempotent: %v vs %v", once, twice)
		}
	})
}

func TestPropertyLastWriteWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "phase")
		key := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "key")
		writes := rapid.SliceOfN(rapid.String(), 1, 10).Draw(rt, "writes")
		store := New()
		for _, value := range writes {
			store.Set(phase, key, value)
		}
		if got := store.Get(phase, key, ""); got != writes[len(writes)-1] {
			rt.Fatalf("got %q, want last write %q", got, writes[len(writes)-1])
		}
	})
}

func TestPropertyResetEmptiesAllPhases(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		snap := genSnapshot().Draw(rt, "snapshot")
		store := New()
		fill(store, snap)
		store.Reset()
		for phase := range snap {
			if n := len(store.Phase(phase)); n != 0 {
				rt.Fatalf("phase %s kept %d values after reset", phase, n)
			}
		}
	})
}
