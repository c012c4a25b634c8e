package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kingrea/phasegen/internal/artifact"
	"github.com/kingrea/phasegen/internal/workflow"
)

var showRaw bool

// showCmd prints one generated document.
var showCmd = &cobra.Command{
	Use:   "show <phase> [key]",
	Short: "Print a generated document (default: the phase validation report)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the stored text without Markdown rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	phaseID := args[0]
	key := workflow.GateKey
	if len(args) == 2 {
		key = args[1]
	}
	text, err := lookupDocument(cmd, phaseID, key)
	if err != nil {
		return err
	}
	if showRaw {
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("render %s/%s: %w", phaseID, key, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// lookupDocument prefers the stored value and falls back to the document
// the catalog says the step wrote.
func lookupDocument(cmd *cobra.Command, phaseID, key string) (string, error) {
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return "", err
	}
	if backend != nil {
		defer backend.Close()
	}
	if value, ok := store.Lookup(phaseID, key); ok {
		return value, nil
	}

	catalog, err := loadCatalog()
	if err != nil {
		return "", err
	}
	phase, ok := catalog.Phase(phaseID)
	if !ok {
		return "", fmt.Errorf("unknown phase %s", phaseID)
	}
	for _, step := range phase.Steps {
		if step.StepKey() != key {
			continue
		}
		path := artifact.NewRef(key, phase.Folder, step.Output).Path(cfg.OutputDir())
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s/%s has not been generated yet", phaseID, key)
		}
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("phase %s has no document %s", phaseID, key)
}
