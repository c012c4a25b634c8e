// Package executor hands rendered prompts to whatever produces the
// document text: a Gemini model, an external command, or a deterministic
// offline stub.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Request is one step's worth of work for an executor.
type Request struct {
	Phase string
	Step  string
	Role  string
	// Persona is the role rendered as a system instruction.
	Persona  string
	Prompt   string
	Expected string
	Gate     bool
}

// Executor produces document text for a step.
type Executor interface {
	Name() string
	Execute(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Executor.
type Func func(ctx context.Context, req Request) (string, error)

// Name implements Executor.
func (f Func) Name() string { return "func" }

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Kinds accepted by Build.
const (
	KindGemini  = "gemini"
	KindCommand = "command"
	KindOffline = "offline"
)

// DefaultModel is used when the Gemini executor has no model configured.
const DefaultModel = "gemini-2.0-flash"

// DefaultAPIKeyEnv names the environment variable holding the Gemini key.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"

// Config selects and configures an executor.
type Config struct {
	Kind        string        `yaml:"kind" json:"kind"`
	Model       string        `yaml:"model,omitempty" json:"model,omitempty"`
	APIKeyEnv   string        `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Temperature *float32      `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Command     []string      `yaml:"command,omitempty" json:"command,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Build constructs the executor described by cfg. A positive Timeout bounds
// every Execute call.
func Build(ctx context.Context, cfg Config) (Executor, error) {
	exec, err := build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		return WithTimeout(exec, cfg.Timeout), nil
	}
	return exec, nil
}

func build(ctx context.Context, cfg Config) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindOffline, "":
		return Offline{}, nil
	case KindCommand:
		cmd, err := NewCommand(cfg.Command)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case KindGemini:
		envName := cfg.APIKeyEnv
		if envName == "" {
			envName = DefaultAPIKeyEnv
		}
		key := strings.TrimSpace(os.Getenv(envName))
		if key == "" {
			return nil, fmt.Errorf("executor: %s is not set", envName)
		}
		gem, err := NewGemini(ctx, GeminiConfig{APIKey: key, Model: cfg.Model, Temperature: cfg.Temperature})
		if err != nil {
			return nil, err
		}
		return gem, nil
	default:
		return nil, fmt.Errorf("executor: unknown kind %q", cfg.Kind)
	}
}

type timeoutExecutor struct {
	inner   Executor
	timeout time.Duration
}

// WithTimeout wraps exec so every call runs under its own deadline.
func WithTimeout(exec Executor, timeout time.Duration) Executor {
	return timeoutExecutor{inner: exec, timeout: timeout}
}

func (t timeoutExecutor) Name() string { return t.inner.Name() }

func (t timeoutExecutor) Execute(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.inner.Execute(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("executor: %s timed out after %s: %w", t.inner.Name(), t.timeout, err)
	}
	return out, err
}
