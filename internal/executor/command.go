package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command runs an external program per step. The prompt is written to its
// stdin and stdout becomes the document.
type Command struct {
	argv []string
}

// NewCommand validates argv and returns a Command executor.
func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("executor: command is required")
	}
	return &Command{argv: append([]string{}, argv...)}, nil
}

// Name implements Executor.
func (c *Command) Name() string { return "command:" + c.argv[0] }

// Execute implements Executor.
func (c *Command) Execute(ctx context.Context, req Request) (string, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = strings.NewReader(composePrompt(req))
	cmd.Env = append(os.Environ(),
		"PHASEGEN_PHASE="+req.Phase,
		"PHASEGEN_STEP="+req.Step,
		"PHASEGEN_ROLE="+req.Role,
		"PHASEGEN_PERSONA="+req.Persona,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("executor: %s for %s/%s: %w: %s", c.argv[0], req.Phase, req.Step, err, lastLine(detail))
		}
		return "", fmt.Errorf("executor: %s for %s/%s: %w", c.argv[0], req.Phase, req.Step, err)
	}
	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("executor: %s for %s/%s produced no output", c.argv[0], req.Phase, req.Step)
	}
	return text, nil
}

func lastLine(text string) string {
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return text[idx+1:]
	}
	return text
}
