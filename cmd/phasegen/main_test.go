package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kingrea/phasegen/internal/pipeline"
	"github.com/kingrea/phasegen/internal/workflow"
)

// execute runs the root command against a fresh flag state.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	t.Cleanup(func() { _ = closeLogger() })
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestRunWithoutSeedFails(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "", "run", "-C", dir, "-q")
	if err == nil || !strings.Contains(err.Error(), "no system request") {
		t.Fatalf("expected missing seed error, got %v", err)
	}
}

func TestRunOfflineWritesEveryPhase(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "run", "-C", dir, "-q", "--seed", "Build a greenhouse monitor")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, id := range workflow.Order {
		if !strings.Contains(out, id) {
			t.Fatalf("summary misses %s:\n%s", id, out)
		}
	}
	request := filepath.Join(dir, "output", workflow.RequestFolder, workflow.RequestFile)
	data, err := os.ReadFile(request)
	if err != nil || strings.TrimSpace(string(data)) != "Build a greenhouse monitor" {
		t.Fatalf("request document = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".phasegen", "state", "run.json")); err != nil {
		t.Fatalf("run state not saved: %v", err)
	}

	status, err := execute(t, "", "status", "-C", dir, "-q")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(status, "maintenance") || !strings.Contains(status, "completed") {
		t.Fatalf("unexpected status:\n%s", status)
	}

	report, err := execute(t, "", "show", "-C", dir, "-q", "--raw", "planning")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(report, "VERDICT: PASS") {
		t.Fatalf("expected validation report, got:\n%s", report)
	}
}

func TestRunReusesStoredRequestAndSubset(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "Track warehouse pallets\n", "memory", "set", "-C", dir, "-q", workflow.RequestPhase, workflow.RequestKey, "-"); err != nil {
		t.Fatalf("memory set: %v", err)
	}
	out, err := execute(t, "", "run", "-C", dir, "-q", "--phase", "initiation", "--phase", "planning")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if strings.Contains(out, "requirements") {
		t.Fatalf("only the selected phases should run:\n%s", out)
	}
	got, err := execute(t, "", "memory", "get", "-C", dir, "-q", "initiation", workflow.GateKey)
	if err != nil || !strings.Contains(got, "VERDICT: PASS") {
		t.Fatalf("memory get = %q, %v", got, err)
	}
}

func TestRunRejectsBlankSeedFile(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.txt")
	if err := os.WriteFile(seed, []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	out, err := execute(t, "", "run", "-C", dir, "-q", "--seed-file", seed, "--phase", "initiation")
	if !errors.Is(err, pipeline.ErrEmptyRequest) {
		t.Fatalf("expected empty request error, got %v\n%s", err, out)
	}
	if out != "" {
		t.Fatalf("no phase should run, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "output", "1_initiation")); !os.IsNotExist(err) {
		t.Fatalf("initiation output should not exist: %v", err)
	}
}

func TestRunRejectsUnknownPhase(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "", "run", "-C", dir, "-q", "--seed", "x", "--phase", "marketing")
	if err == nil || !strings.Contains(err.Error(), "unknown phase") {
		t.Fatalf("expected unknown phase error, got %v", err)
	}
}

func TestStatusWithoutRun(t *testing.T) {
	out, err := execute(t, "", "status", "-C", t.TempDir(), "-q")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No run recorded yet.") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestPhasesListsCatalog(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "phases", "-C", dir, "-q")
	if err != nil {
		t.Fatalf("phases: %v", err)
	}
	for _, want := range []string{"1_initiation/", "8_maintenance/", workflow.GateKey} {
		if !strings.Contains(out, want) {
			t.Fatalf("listing misses %q:\n%s", want, out)
		}
	}
	yamlOut, err := execute(t, "", "phases", "-C", dir, "-q", "--yaml")
	if err != nil {
		t.Fatalf("phases --yaml: %v", err)
	}
	catalog, err := workflow.ParseCatalogYAML([]byte(yamlOut))
	if err != nil {
		t.Fatalf("yaml output does not parse: %v", err)
	}
	if len(catalog.Phases) != len(workflow.Order) {
		t.Fatalf("phases = %d", len(catalog.Phases))
	}
}

func TestMemoryPhasesEmptyStore(t *testing.T) {
	out, err := execute(t, "", "memory", "phases", "-C", t.TempDir(), "-q")
	if err != nil {
		t.Fatalf("memory phases: %v", err)
	}
	if strings.TrimSpace(out) != "The store is empty." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestShowUnknownDocument(t *testing.T) {
	_, err := execute(t, "", "show", "-C", t.TempDir(), "-q", "design", "nonexistent")
	if err == nil || !strings.Contains(err.Error(), "has no document") {
		t.Fatalf("expected missing document error, got %v", err)
	}
}
