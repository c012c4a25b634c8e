package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/artifact"
	"github.com/kingrea/phasegen/internal/tui"
	"github.com/kingrea/phasegen/internal/workflow"
)

var interviewPrint bool

// interviewCmd collects the system request interactively.
var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Answer the requirements questionnaire and store the system request",
	RunE:  runInterview,
}

func init() {
	interviewCmd.Flags().BoolVar(&interviewPrint, "print", false, "Print the composed request after the interview")
}

func runInterview(cmd *cobra.Command, args []string) error {
	request, err := tui.Run(nil)
	if errors.Is(err, tui.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Interview cancelled; nothing stored.")
		return nil
	}
	if err != nil {
		return err
	}
	return storeRequest(cmd, request)
}

// storeRequest records request as the run seed in memory, in the request
// document and in the configured backend.
func storeRequest(cmd *cobra.Command, request string) error {
	ctx := cmd.Context()
	store, backend, err := openStore(ctx)
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
	}
	store.Set(workflow.RequestPhase, workflow.RequestKey, request)

	path := filepath.Join(cfg.OutputDir(), workflow.RequestFolder, workflow.RequestFile)
	if err := artifact.WriteFile(path, request); err != nil {
		return err
	}
	if backend != nil {
		if err := store.Persist(ctx, backend); err != nil {
			return err
		}
	}
	logger.Info("system request stored", zap.String("path", path), zap.Int("bytes", len(request)))
	if interviewPrint {
		fmt.Fprint(cmd.OutOrStdout(), request)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "System request saved to %s\n", path)
	return nil
}
