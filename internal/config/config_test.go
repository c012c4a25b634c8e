package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/phasegen/internal/executor"
	"github.com/kingrea/phasegen/internal/memory"
)

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	dir := filepath.Join(projectDir, StateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.OutputDir() != filepath.Join(c.ProjectDir, "output") {
		t.Fatalf("output dir = %s", c.OutputDir())
	}
	if c.Executor().Kind != executor.KindOffline {
		t.Fatalf("executor kind = %s", c.Executor().Kind)
	}
	backend := c.MemoryBackend()
	if backend.Kind != memory.BackendFile || backend.Path != filepath.Join(c.StateDir, "state", "memory.json") {
		t.Fatalf("memory backend = %+v", backend)
	}
	if c.Project.Pipeline.Placeholder != "not available" || c.Project.Pipeline.MaxParallel != 1 {
		t.Fatalf("pipeline defaults = %+v", c.Project.Pipeline)
	}
}

func TestInitDirWritesParsableDefaults(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sub := range []string{"logs", "state", "prompts", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(projectDir, StateDirName, sub)); err != nil {
			t.Fatalf("missing %s: %v", sub, err)
		}
	}
	if _, err := NewConfig(projectDir); err != nil {
		t.Fatalf("default config does not load: %v", err)
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
output_dir: docs/generated
executor:
  kind: Command
  command: ["llm", "--stdin"]
  timeout: 90s
pipeline:
  phases: [Design, testing]
  max_parallel: 3
  prompts_dir: prompts
memory:
  backend: sqlite
logging:
  level: DEBUG
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.OutputDir() != filepath.Join(c.ProjectDir, "docs", "generated") {
		t.Fatalf("output dir = %s", c.OutputDir())
	}
	ex := c.Executor()
	if ex.Kind != executor.KindCommand || ex.Timeout != 90*time.Second || len(ex.Command) != 2 {
		t.Fatalf("executor = %+v", ex)
	}
	if got := c.Project.Pipeline.Phases; len(got) != 2 || got[0] != "design" {
		t.Fatalf("phases = %v", got)
	}
	if c.Project.Pipeline.PromptsDir != filepath.Join(c.ProjectDir, "prompts") {
		t.Fatalf("prompts dir = %s", c.Project.Pipeline.PromptsDir)
	}
	if c.MemoryBackend().Path != filepath.Join(c.StateDir, "state", "memory.db") {
		t.Fatalf("sqlite path = %s", c.MemoryBackend().Path)
	}
	if c.Project.Logging.Level != "debug" {
		t.Fatalf("level = %s", c.Project.Logging.Level)
	}
}

func TestNewConfigValidation(t *testing.T) {
	cases := map[string]string{
		"command without argv": "executor:\n  kind: command\n",
		"unknown phase":        "pipeline:\n  phases: [marketing]\n",
		"redis without addr":   "memory:\n  backend: redis\n",
		"bad timeout":          "executor:\n  timeout: soon\n",
		"bad level":            "logging:\n  level: loud\n",
	}
	for name, body := range cases {
		projectDir := t.TempDir()
		writeConfig(t, projectDir, body)
		if _, err := NewConfig(projectDir); err == nil {
			t.Fatalf("%s: expected validation error but got none", name)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Project.Executor.Kind = executor.KindGemini
	c.Project.Executor.Model = "gemini-2.0-pro"
	if err := c.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Executor().Model != "gemini-2.0-pro" {
		t.Fatalf("model = %s", again.Executor().Model)
	}
}
