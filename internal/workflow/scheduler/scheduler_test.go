package scheduler

import (
	"testing"

	"github.com/kingrea/phasegen/internal/workflow"
	"github.com/kingrea/phasegen/internal/workflow/resolver"
)

func fanOutPhase() workflow.PhaseDefinition {
	return workflow.PhaseDefinition{
		ID: "testing",
		Steps: []workflow.StepDefinition{
			{ID: "plan", Output: "Test_Plan.md"},
			{ID: "regression", Output: "Regression.md", DependsOn: []string{"plan"}},
			{ID: "uat", Output: "UAT.md", DependsOn: []string{"plan"}},
		},
		Gate: &workflow.GateDefinition{},
	}
}

func buildScheduler(t *testing.T, def workflow.PhaseDefinition) (*Scheduler, *resolver.Resolver) {
	t.Helper()
	res, err := resolver.New(def)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	sched, err := New(res)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched, res
}

func complete(t *testing.T, res *resolver.Resolver, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := res.Mark(id, resolver.NodeStateComplete, nil); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}
	res.Refresh()
}

func startIDs(batch Batch) []string {
	ids := make([]string, 0, len(batch.Start))
	for _, node := range batch.Start {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestSchedulerStartsEveryReadyStep(t *testing.T) {
	sched, res := buildScheduler(t, fanOutPhase())
	complete(t, res, "plan")
	batch, err := sched.Next(Request{})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := startIDs(batch); len(got) != 2 || got[0] != "regression" || got[1] != "uat" {
		t.Fatalf("start = %v", got)
	}
	hold, ok := batch.Wait[workflow.GateStepID]
	if !ok || hold.Reason != ReasonDependencies || hold.Detail != "regression, uat" {
		t.Fatalf("gate hold = %+v", hold)
	}
}

func TestSchedulerHoldsGateUntilEveryStepCompletes(t *testing.T) {
	sched, res := buildScheduler(t, fanOutPhase())
	complete(t, res, "plan", "regression")
	batch, err := sched.Next(Request{})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := startIDs(batch); len(got) != 1 || got[0] != "uat" {
		t.Fatalf("expected only uat, got %v", got)
	}
	if _, held := batch.Wait["regression"]; held {
		t.Fatalf("completed steps are not held: %+v", batch.Wait)
	}
	complete(t, res, "uat")
	batch, err = sched.Next(Request{})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := startIDs(batch); len(got) != 1 || got[0] != workflow.GateStepID {
		t.Fatalf("expected gate once all steps completed, got %v", got)
	}
	if len(batch.Wait) != 0 {
		t.Fatalf("nothing should wait, got %+v", batch.Wait)
	}
}

func TestSchedulerEnforcesParallelLimit(t *testing.T) {
	sched, res := buildScheduler(t, fanOutPhase())
	complete(t, res, "plan")
	batch, err := sched.Next(Request{MaxParallel: 1})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := startIDs(batch); len(got) != 1 || got[0] != "regression" {
		t.Fatalf("expected regression only, got %v", got)
	}
	if hold := batch.Wait["uat"]; hold.Reason != ReasonConcurrency {
		t.Fatalf("uat hold = %+v", hold)
	}
	if err := res.Mark("regression", resolver.NodeStateRunning, nil); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	batch, err = sched.Next(Request{MaxParallel: 1})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(batch.Start) != 0 {
		t.Fatalf("capacity exhausted, got %v", startIDs(batch))
	}
	if got := batch.Held(ReasonConcurrency, res.Order()); len(got) != 1 || got[0] != "uat" {
		t.Fatalf("held for concurrency = %v", got)
	}
	if hold := batch.Wait["regression"]; hold.Reason != ReasonRunning {
		t.Fatalf("regression hold = %+v", hold)
	}
}

func TestSchedulerCountsDriverRunningSteps(t *testing.T) {
	sched, res := buildScheduler(t, fanOutPhase())
	complete(t, res, "plan")
	batch, err := sched.Next(Request{MaxParallel: 2, Running: []string{"regression"}})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := startIDs(batch); len(got) != 1 || got[0] != "uat" {
		t.Fatalf("expected uat only, got %v", got)
	}
	if batch.Wait["regression"].Reason != ReasonRunning {
		t.Fatalf("regression hold = %+v", batch.Wait)
	}
}

func TestHoldString(t *testing.T) {
	if got := (Hold{Reason: ReasonDependencies, Detail: "plan"}).String(); got != "dependencies: plan" {
		t.Fatalf("hold = %q", got)
	}
	if got := (Hold{Reason: ReasonRunning}).String(); got != "running" {
		t.Fatalf("hold = %q", got)
	}
}

func TestNewRequiresResolver(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil resolver")
	}
}
