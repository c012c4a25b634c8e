package prompt

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kingrea/phasegen/internal/workflow"
)

type mapSource map[string]map[string]string

func (m mapSource) Lookup(phase, key string) (string, bool) {
	value, ok := m[phase][key]
	return value, ok
}

func initiation(t *testing.T) workflow.PhaseDefinition {
	t.Helper()
	def, err := workflow.PhaseDefinition{
		ID:    "initiation",
		Index: 1,
		Steps: []workflow.StepDefinition{
			{ID: "vision", Key: "vision_document", Output: "vision_document.txt"},
			{ID: "conops", Output: "conops.txt", DependsOn: []string{"vision"}},
		},
		Gate: &workflow.GateDefinition{Focus: "charter scope"},
	}.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return def
}

func TestRenderDefaultTemplateRecallsUpstream(t *testing.T) {
	set, err := NewRenderer().Prepare(initiation(t))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	src := mapSource{
		workflow.RequestPhase: {workflow.RequestKey: "an inventory tracker"},
		"initiation":          {"vision_document": "track every box"},
	}
	out, err := set.Render("conops", src)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"an inventory tracker", "Vision:", "track every box", "Write the Conops document for the Initiation phase."} {
		if !strings.Contains(out.Text, want) {
			t.Fatalf("rendered prompt missing %q:\n%s", want, out.Text)
		}
	}
	if len(out.Missing) != 0 {
		t.Fatalf("unexpected missing refs: %v", out.Missing)
	}
	if set.Source("conops") != "built-in" {
		t.Fatalf("source = %s", set.Source("conops"))
	}
}

func TestRenderSubstitutesPlaceholderAndReportsMissing(t *testing.T) {
	set, err := NewRenderer(WithPlaceholder("N/A")).Prepare(initiation(t))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	out, err := set.Render(workflow.GateStepID, mapSource{"initiation": {"conops": "ops"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.Text, "N/A") || !strings.Contains(out.Text, "charter scope") {
		t.Fatalf("gate prompt:\n%s", out.Text)
	}
	if !reflect.DeepEqual(out.Missing, []string{"initiation/vision_document"}) {
		t.Fatalf("missing = %v", out.Missing)
	}
}

func TestPrepareUsesDefinitionPromptAndOverrides(t *testing.T) {
	def := initiation(t)
	def.Steps[0].Prompt = `Vision for {{request}} ({{upstream "nothing"}})`
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "initiation"), 0o755); err != nil {
		t.Fatal(err)
	}
	override := filepath.Join(dir, "initiation", "conops.tmpl")
	if err := os.WriteFile(override, []byte(`Override {{recall "planning" "wbs"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := NewRenderer(WithOverridesDir(dir)).Prepare(def)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	src := mapSource{workflow.RequestPhase: {workflow.RequestKey: "req"}}
	vision, err := set.Render("vision", src)
	if err != nil {
		t.Fatalf("render vision: %v", err)
	}
	if vision.Text != "Vision for req (not available)" {
		t.Fatalf("vision = %q", vision.Text)
	}
	conops, err := set.Render("conops", src)
	if err != nil {
		t.Fatalf("render conops: %v", err)
	}
	if conops.Text != "Override not available" || set.Source("conops") != override {
		t.Fatalf("override not used: %q from %s", conops.Text, set.Source("conops"))
	}
}

func TestPrepareFailsOnBrokenTemplate(t *testing.T) {
	def := initiation(t)
	def.Steps[1].Prompt = "{{recall \"a\""
	if _, err := NewRenderer().Prepare(def); err == nil || !strings.Contains(err.Error(), "initiation/conops") {
		t.Fatalf("expected parse error naming the step, got %v", err)
	}
}

func TestRenderUnknownStep(t *testing.T) {
	set, err := NewRenderer().Prepare(initiation(t))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := set.Render("ghost", nil); err == nil {
		t.Fatalf("expected unknown step error")
	}
}
