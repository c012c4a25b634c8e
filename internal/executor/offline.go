package executor

import (
	"context"
	"fmt"
	"strings"
)

// Offline produces deterministic placeholder documents without calling any
// model. Quality gates always pass.
type Offline struct{}

// Name implements Executor.
func (Offline) Name() string { return KindOffline }

// Execute implements Executor.
func (Offline) Execute(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", titleFor(req))
	fmt.Fprintf(&b, "Phase: %s\nStep: %s\nRole: %s\n", req.Phase, req.Step, req.Role)
	if req.Expected != "" {
		fmt.Fprintf(&b, "\n%s\n", req.Expected)
	}
	if req.Gate {
		b.WriteString("\nAll documents reviewed offline.\n\nVERDICT: PASS\n")
	}
	return b.String(), nil
}

func titleFor(req Request) string {
	words := strings.FieldsFunc(req.Step, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Document"
	}
	return strings.Join(words, " ")
}
