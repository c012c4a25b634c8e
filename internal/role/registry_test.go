package role

import (
	"strings"
	"testing"
)

func TestDefaultRegistryResolvesEveryRole(t *testing.T) {
	reg := DefaultRegistry()
	for _, r := range Defaults() {
		got, err := reg.Resolve(r.ID)
		if err != nil {
			t.Fatalf("resolve %s: %v", r.ID, err)
		}
		if got.Name != r.Name {
			t.Fatalf("name = %s, want %s", got.Name, r.Name)
		}
	}
	if _, err := reg.Resolve("ghost"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Role{ID: "qa", Name: "QA"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(Role{ID: "qa", Name: "QA again"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := reg.Register(Role{ID: "nameless"}); err == nil {
		t.Fatalf("expected missing name error")
	}
	if err := reg.Put(Role{ID: "qa", Name: "Replaced"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := reg.Resolve("qa")
	if got.Name != "Replaced" {
		t.Fatalf("put did not replace: %+v", got)
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != "qa" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestPersonaIncludesGoalAndBackstory(t *testing.T) {
	persona := Role{ID: "x", Name: "Tester", Goal: "find bugs", Backstory: "has seen things"}.Persona()
	for _, want := range []string{"You are the Tester.", "Goal: find bugs", "Background: has seen things"} {
		if !strings.Contains(persona, want) {
			t.Fatalf("persona %q missing %q", persona, want)
		}
	}
	if strings.Contains(Role{ID: "y", Name: "Bare"}.Persona(), "Goal") {
		t.Fatalf("empty goal should be omitted")
	}
}
