// cmd/phasegen/main.go
//
// Entry point for the phasegen CLI. Every command works on the project in
// the current directory (or --dir): configuration and state live under
// .phasegen/, generated documents under the configured output directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/config"
	"github.com/kingrea/phasegen/internal/logging"
	"github.com/kingrea/phasegen/internal/memory"
)

var version = "dev"

// consoleAnnotation set to "off" keeps a command's logs out of the terminal.
const consoleAnnotation = "phasegen/console"

var (
	projectDir string
	logLevel   string
	quiet      bool

	cfg         *config.Config
	logger      = zap.NewNop()
	closeLogger = func() error { return nil }
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "phasegen",
	Short: "Generate SDLC documentation phase by phase",
	Long: `phasegen drives an eight-phase software lifecycle documentation pipeline:
initiation, planning, requirements, design, development, testing, deployment
and maintenance. Each phase turns earlier documents into new ones and ends
with a project-manager quality gate.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Console log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log to the log file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(phasesCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(mcpCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.InitDir(projectDir); err != nil {
		return err
	}
	loaded, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}
	cfg = loaded
	level := cfg.Project.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	built, closeFn, err := logging.New(logging.Options{
		Level:    level,
		FilePath: cfg.LogFilePath(),
		Console:  cmd.ErrOrStderr(),
		Quiet:    quiet || cmd.Annotations[consoleAnnotation] == "off",
	})
	if err != nil {
		return err
	}
	_ = closeLogger()
	logger = built.With(zap.String("command", cmd.Name()))
	closeLogger = closeFn
	return nil
}

// openStore builds a store and restores the configured snapshot. The
// backend is nil when memory.backend is none.
func openStore(ctx context.Context) (*memory.Store, memory.Backend, error) {
	store := memory.New(memory.WithLogger(logger))
	backend, err := memory.OpenBackend(cfg.MemoryBackend())
	if err != nil {
		return nil, nil, err
	}
	if backend == nil {
		return store, nil, nil
	}
	if err := store.Restore(ctx, backend); err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return store, backend, nil
}

func requireBackend(backend memory.Backend) error {
	if backend == nil {
		return errors.New("memory.backend is none; configure file, sqlite or redis in .phasegen/config.yaml")
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	_ = closeLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
