package resolver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/phasegen/internal/workflow"
)

func initiationPhase() workflow.PhaseDefinition {
	return workflow.PhaseDefinition{
		ID:    "initiation",
		Index: 1,
		Steps: []workflow.StepDefinition{
			{ID: "charter", Output: "project_charter.txt", DependsOn: []string{"vision", "conops"}},
			{ID: "vision", Output: "vision_document.txt"},
			{ID: "conops", Output: "conops.txt", DependsOn: []string{"vision"}},
		},
		Gate: &workflow.GateDefinition{},
	}
}

func buildResolver(t *testing.T, def workflow.PhaseDefinition) *Resolver {
	t.Helper()
	res, err := New(def)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return res
}

func mustNode(t *testing.T, res *Resolver, id string) *Node {
	t.Helper()
	node, ok := res.Node(id)
	if !ok {
		t.Fatalf("missing node %s", id)
	}
	return node
}

func TestResolverOrdersDependenciesFirst(t *testing.T) {
	res := buildResolver(t, initiationPhase())
	want := []string{"vision", "conops", "charter", workflow.GateStepID}
	if diff := cmp.Diff(want, res.Order()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverRefreshSetsStates(t *testing.T) {
	res := buildResolver(t, initiationPhase())

	vision := mustNode(t, res, "vision")
	conops := mustNode(t, res, "conops")
	gate := mustNode(t, res, workflow.GateStepID)
	if vision.State != NodeStateReady {
		t.Fatalf("expected vision ready, got %s", vision.State)
	}
	if conops.State != NodeStateBlocked {
		t.Fatalf("expected conops blocked, got %s", conops.State)
	}
	if diff := cmp.Diff([]string{"charter", "conops", "vision"}, gate.BlockedBy); diff != "" {
		t.Fatalf("gate blockers (-want +got):\n%s", diff)
	}

	if err := res.Mark("vision", NodeStateComplete, nil); err != nil {
		t.Fatalf("mark: %v", err)
	}
	res.Refresh()
	ready := res.Ready()
	if len(ready) != 1 || ready[0].ID != "conops" {
		t.Fatalf("unexpected ready set: %v", ids(ready))
	}
}

func TestResolverQueueTargetsOrdersDependencies(t *testing.T) {
	res := buildResolver(t, initiationPhase())
	queue, err := res.Queue("charter")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if diff := cmp.Diff([]string{"vision", "conops", "charter"}, ids(queue)); diff != "" {
		t.Fatalf("queue mismatch (-want +got):\n%s", diff)
	}
	if _, err := res.Queue("ghost"); err == nil {
		t.Fatalf("expected unknown step error")
	}
}

func TestResolverRejectsCycles(t *testing.T) {
	def := workflow.PhaseDefinition{
		ID: "design",
		Steps: []workflow.StepDefinition{
			{ID: "hld", Output: "hld.md", DependsOn: []string{"lld"}},
			{ID: "lld", Output: "lld.md", DependsOn: []string{"hld"}},
		},
	}
	_, err := New(def)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestResolverAbandonSkipsUnstartedSteps(t *testing.T) {
	res := buildResolver(t, initiationPhase())
	if err := res.Mark("vision", NodeStateFailed, errors.New("boom")); err != nil {
		t.Fatalf("mark: %v", err)
	}
	skipped := res.Abandon()
	if diff := cmp.Diff([]string{"conops", "charter", workflow.GateStepID}, skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	if !res.Done() {
		t.Fatalf("resolver should be done after abandon")
	}
	if err := res.Mark("vision", NodeStateComplete, nil); err == nil {
		t.Fatalf("terminal steps must not change state")
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID)
	}
	return out
}
