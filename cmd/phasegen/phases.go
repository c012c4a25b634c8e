package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/phasegen/internal/workflow"
)

var phasesYAML bool

// phasesCmd lists the phase catalog.
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List phases, their steps and output documents",
	RunE:  runPhases,
}

func init() {
	phasesCmd.Flags().BoolVar(&phasesYAML, "yaml", false, "Print the catalog as YAML (usable as pipeline.catalog_file)")
}

func runPhases(cmd *cobra.Command, args []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if phasesYAML {
		data, err := workflow.EncodeCatalogYAML(catalog)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	for _, phase := range catalog.Phases {
		fmt.Fprintf(out, "%d. %s (%s) -> %s/\n", phase.Index, phase.Name, phase.ID, phase.Folder)
		for _, step := range phase.Steps {
			line := fmt.Sprintf("   - %-28s %s", step.StepKey(), step.Output)
			if len(step.DependsOn) > 0 {
				line += "  after " + strings.Join(step.DependsOn, ", ")
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
