// internal/config/config.go
//
// This package handles configuration and the .phasegen directory structure.
// Every project that runs phasegen gets a .phasegen/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/phasegen/internal/executor"
	"github.com/kingrea/phasegen/internal/memory"
	"github.com/kingrea/phasegen/internal/prompt"
	"github.com/kingrea/phasegen/internal/workflow"
)

const (
	// StateDirName is the name of the directory we create in each project.
	StateDirName = ".phasegen"

	defaultOutputDir  = "output"
	defaultMemoryFile = "memory.json"
	defaultLogLevel   = "info"
)

const defaultProjectConfigYAML = `# phasegen project configuration
version: 1

# Root of the generated document tree (output/<n>_<phase>/<file>).
output_dir: output

executor:
  # offline | gemini | command
  kind: offline
  # model: gemini-2.0-flash
  # api_key_env: GEMINI_API_KEY
  # command: ["my-llm-cli", "--stdin"]
  # timeout: 5m

pipeline:
  # Subset of phases to run; empty runs all eight in order.
  phases: []
  max_parallel: 1
  placeholder: not available
  # prompts_dir: .phasegen/prompts
  # catalog_file: phases.yaml

memory:
  # none | file | sqlite | redis
  backend: file
  # path: .phasegen/state/memory.json
  # redis:
  #   addr: localhost:6379
  #   prefix: phasegen:memory

metrics:
  # addr: 127.0.0.1:9464

logging:
  level: info
`

// ExecutorConfig mirrors executor.Config with YAML friendly durations.
type ExecutorConfig struct {
	Kind        string   `yaml:"kind"`
	Model       string   `yaml:"model,omitempty"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	Temperature *float32 `yaml:"temperature,omitempty"`
	Command     []string `yaml:"command,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
}

// PipelineConfig captures driver preferences.
type PipelineConfig struct {
	Phases      []string `yaml:"phases,omitempty"`
	MaxParallel int      `yaml:"max_parallel,omitempty"`
	Placeholder string   `yaml:"placeholder,omitempty"`
	PromptsDir  string   `yaml:"prompts_dir,omitempty"`
	CatalogFile string   `yaml:"catalog_file,omitempty"`
	RawOutput   bool     `yaml:"raw_output,omitempty"`
}

// MemoryConfig selects the key/value snapshot backend.
type MemoryConfig struct {
	Backend string             `yaml:"backend"`
	Path    string             `yaml:"path,omitempty"`
	Redis   memory.RedisConfig `yaml:"redis,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// ProjectConfig models .phasegen/config.yaml.
type ProjectConfig struct {
	Version   int            `yaml:"version"`
	OutputDir string         `yaml:"output_dir"`
	Executor  ExecutorConfig `yaml:"executor"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Memory    MemoryConfig   `yaml:"memory"`
	Metrics   MetricsConfig  `yaml:"metrics,omitempty"`
	Logging   LoggingConfig  `yaml:"logging,omitempty"`
}

// Config holds the runtime configuration for phasegen.
type Config struct {
	// ProjectDir is the directory where the user ran `phasegen` from.
	ProjectDir string

	// StateDir is ProjectDir/.phasegen.
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .phasegen directory structure in the given project directory.
//
// Structure created:
// .phasegen/
// ├── config.yaml
// ├── logs/      <- zap log file and the run journal
// ├── state/     <- run state and memory snapshot
// └── prompts/   <- optional <phase>/<step>.tmpl overrides
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, StateDirName)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
		filepath.Join(root, "prompts"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a Config populated with project settings. A missing
// config file yields the defaults.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, StateDirName),
		Project:    defaultProjectConfig(),
	}
	cfg.Project.normalize(cfg.ProjectDir, cfg.StateDir)
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogFilePath returns the structured log file.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogsDir(), "phasegen.log")
}

// JournalPath returns the run journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// RunStatePath returns the persisted run state file.
func (c *Config) RunStatePath() string {
	return filepath.Join(c.StateDir, "state", "run.json")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// OutputDir returns the absolute document root.
func (c *Config) OutputDir() string {
	return c.Project.OutputDir
}

// MemoryBackend returns the snapshot backend configuration.
func (c *Config) MemoryBackend() memory.BackendConfig {
	return memory.BackendConfig{
		Kind:  c.Project.Memory.Backend,
		Path:  c.Project.Memory.Path,
		Redis: c.Project.Memory.Redis,
	}
}

// Executor returns the executor configuration.
func (c *Config) Executor() executor.Config {
	ex := c.Project.Executor
	timeout, _ := time.ParseDuration(ex.Timeout)
	return executor.Config{
		Kind:        ex.Kind,
		Model:       ex.Model,
		APIKeyEnv:   ex.APIKeyEnv,
		Temperature: ex.Temperature,
		Command:     append([]string{}, ex.Command...),
		Timeout:     timeout,
	}
}

// Save writes the project config back to disk.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir, c.StateDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir, c.StateDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.OutputDir) == "" {
		pc.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(pc.Executor.Kind) == "" {
		pc.Executor.Kind = executor.KindOffline
	}
	if pc.Pipeline.MaxParallel == 0 {
		pc.Pipeline.MaxParallel = 1
	}
	if strings.TrimSpace(pc.Pipeline.Placeholder) == "" {
		pc.Pipeline.Placeholder = prompt.DefaultPlaceholder
	}
	if strings.TrimSpace(pc.Memory.Backend) == "" {
		pc.Memory.Backend = memory.BackendFile
	}
	if pc.Memory.Redis.Prefix == "" {
		pc.Memory.Redis.Prefix = memory.DefaultRedisPrefix
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaultLogLevel
	}
}

func (pc *ProjectConfig) normalize(base, stateDir string) {
	pc.OutputDir = resolvePath(base, pc.OutputDir)
	pc.Executor.Kind = normalizeKind(pc.Executor.Kind)
	pc.Memory.Backend = normalizeKind(pc.Memory.Backend)
	if pc.Memory.Path == "" {
		switch pc.Memory.Backend {
		case memory.BackendFile:
			pc.Memory.Path = filepath.Join(stateDir, "state", defaultMemoryFile)
		case memory.BackendSQLite:
			pc.Memory.Path = filepath.Join(stateDir, "state", "memory.db")
		}
	}
	pc.Memory.Path = resolvePath(base, pc.Memory.Path)
	pc.Pipeline.PromptsDir = resolvePath(base, pc.Pipeline.PromptsDir)
	pc.Pipeline.CatalogFile = resolvePath(base, pc.Pipeline.CatalogFile)
	phases := pc.Pipeline.Phases[:0]
	for _, id := range pc.Pipeline.Phases {
		if id = normalizeKind(id); id != "" {
			phases = append(phases, id)
		}
	}
	pc.Pipeline.Phases = phases
	pc.Logging.Level = normalizeKind(pc.Logging.Level)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Executor.Kind {
	case executor.KindOffline, executor.KindGemini:
	case executor.KindCommand:
		if len(pc.Executor.Command) == 0 {
			return fmt.Errorf("executor.command is required for the command executor")
		}
	default:
		return fmt.Errorf("executor.kind must be 'offline', 'gemini' or 'command'")
	}
	if pc.Executor.Timeout != "" {
		if d, err := time.ParseDuration(pc.Executor.Timeout); err != nil || d < 0 {
			return fmt.Errorf("executor.timeout %q is not a valid duration", pc.Executor.Timeout)
		}
	}
	if pc.Pipeline.MaxParallel < 1 {
		return fmt.Errorf("pipeline.max_parallel must be >= 1")
	}
	if pc.Pipeline.CatalogFile == "" {
		for _, id := range pc.Pipeline.Phases {
			if workflow.Position(id) < 0 {
				return fmt.Errorf("pipeline.phases: unknown phase %q", id)
			}
		}
	}
	switch pc.Memory.Backend {
	case memory.BackendNone, memory.BackendFile, memory.BackendSQLite:
	case memory.BackendRedis:
		if strings.TrimSpace(pc.Memory.Redis.Addr) == "" {
			return fmt.Errorf("memory.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("memory.backend must be 'none', 'file', 'sqlite' or 'redis'")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}

func normalizeKind(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
