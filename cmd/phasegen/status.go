package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kingrea/phasegen/internal/logbook"
	"github.com/kingrea/phasegen/internal/workflow/engine"
)

var statusLines int

// statusCmd reports the last recorded run.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show phase states of the last run and the journal tail",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLines, "lines", "n", 10, "Journal lines to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	state, err := engine.NewRepository(cfg.RunStatePath()).Load()
	if errors.Is(err, engine.ErrStateNotFound) {
		fmt.Fprintln(out, "No run recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s), updated %s\n\n", state.RunID, state.Status, state.UpdatedAt.Format("2006-01-02 15:04:05"))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tSTATE\tOUTCOME\tVERDICT\tSTEPS\tERROR")
	for _, phase := range state.Phases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			phase.ID, phase.State, dash(string(phase.Outcome)), dash(phase.Verdict), len(phase.Steps), dash(phase.Error))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}
	lines, total := journal.Tail(statusLines)
	if total == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nJournal (last %d of %d)\n", len(lines), total)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
