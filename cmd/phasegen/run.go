package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/artifact"
	"github.com/kingrea/phasegen/internal/executor"
	"github.com/kingrea/phasegen/internal/logbook"
	"github.com/kingrea/phasegen/internal/memory"
	"github.com/kingrea/phasegen/internal/metrics"
	"github.com/kingrea/phasegen/internal/pipeline"
	"github.com/kingrea/phasegen/internal/prompt"
	"github.com/kingrea/phasegen/internal/sdlc"
	"github.com/kingrea/phasegen/internal/workflow"
	"github.com/kingrea/phasegen/internal/workflow/engine"
)

var (
	seedText     string
	seedFile     string
	runPhaseIDs  []string
	metricsAddr  string
	parallel     int
	executorKind string
	fresh        bool
)

// runCmd executes the pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the documentation pipeline",
	Long: `Run every phase (or the --phase subset) in lifecycle order.

The system request comes from --seed, --seed-file, or the request captured
by an earlier 'phasegen interview' or run. A failing phase is reported and
skipped; later phases still run with "not available" in place of its
documents.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&seedText, "seed", "", "System request text")
	runCmd.Flags().StringVar(&seedFile, "seed-file", "", "File holding the system request")
	runCmd.Flags().StringSliceVar(&runPhaseIDs, "phase", nil, "Run only these phases (repeatable, kept in lifecycle order)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "Maximum concurrent steps per phase (overrides pipeline.max_parallel)")
	runCmd.Flags().StringVar(&executorKind, "executor", "", "Executor kind: offline, gemini or command")
	runCmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore the stored memory snapshot")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, backend, err := openStore(ctx)
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
	}
	if fresh {
		store.Reset()
	}

	seed, source, err := resolveSeed(store)
	if err != nil {
		return err
	}

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	ids := runPhaseIDs
	if len(ids) == 0 {
		ids = cfg.Project.Pipeline.Phases
	}
	selected, err := catalog.Select(normalizeIDs(ids)...)
	if err != nil {
		return err
	}

	exCfg := cfg.Executor()
	if executorKind != "" {
		exCfg.Kind = executorKind
	}
	exec, err := executor.Build(ctx, exCfg)
	if err != nil {
		return err
	}

	writerOpts := []artifact.WriterOption{artifact.WithLogger(logger)}
	if cfg.Project.Pipeline.RawOutput {
		writerOpts = append(writerOpts, artifact.WithRawOutput())
	}
	writer := artifact.NewWriter(cfg.OutputDir(), writerOpts...)

	renderer := prompt.NewRenderer(
		prompt.WithPlaceholder(cfg.Project.Pipeline.Placeholder),
		prompt.WithOverridesDir(cfg.Project.Pipeline.PromptsDir),
		prompt.WithLogger(logger),
	)
	eng, err := engine.New(engine.NewRepository(cfg.RunStatePath()))
	if err != nil {
		return err
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}

	m := metrics.New(metrics.DefaultNamespace)
	if metricsAddr == "" {
		metricsAddr = cfg.Project.Metrics.Addr
	}
	if metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, metricsAddr, logger); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	maxParallel := cfg.Project.Pipeline.MaxParallel
	if parallel > 0 {
		maxParallel = parallel
	}
	opts := []pipeline.Option{
		pipeline.WithRenderer(renderer),
		pipeline.WithEngine(eng),
		pipeline.WithMetrics(m),
		pipeline.WithJournal(journal),
		pipeline.WithLogger(logger),
		pipeline.WithMaxParallel(maxParallel),
	}
	if backend != nil {
		opts = append(opts, pipeline.WithBackend(backend))
	}
	driver, err := pipeline.New(store, exec, writer, opts...)
	if err != nil {
		return err
	}

	if _, err := driver.Seed(seed); err != nil {
		if errors.Is(err, pipeline.ErrEmptyRequest) {
			return err
		}
		logger.Warn("seed document not written", zap.Error(err))
	}
	logger.Info("system request loaded", zap.String("source", source), zap.Int("bytes", len(seed)))

	report, runErr := driver.Run(ctx, selected.Phases)
	printReport(cmd.OutOrStdout(), report)
	if runErr != nil {
		return runErr
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d phase(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// resolveSeed picks the system request: flags first, then the stored
// request, then the request document from an earlier run.
func resolveSeed(store *memory.Store) (string, string, error) {
	if strings.TrimSpace(seedText) != "" {
		return seedText, "flag", nil
	}
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return "", "", fmt.Errorf("read seed file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", "", fmt.Errorf("seed file %s is empty: %w", seedFile, pipeline.ErrEmptyRequest)
		}
		return string(data), seedFile, nil
	}
	if value, ok := store.Lookup(workflow.RequestPhase, workflow.RequestKey); ok && strings.TrimSpace(value) != "" {
		return value, "memory", nil
	}
	path := filepath.Join(cfg.OutputDir(), workflow.RequestFolder, workflow.RequestFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil && strings.TrimSpace(string(data)) != "":
		return string(data), path, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return "", "", errors.New("no system request: pass --seed or --seed-file, or run 'phasegen interview' first")
}

func loadCatalog() (workflow.Catalog, error) {
	if path := cfg.Project.Pipeline.CatalogFile; path != "" {
		catalog, err := workflow.LoadCatalogFile(path)
		if err != nil {
			return workflow.Catalog{}, err
		}
		return catalog.Normalized()
	}
	return sdlc.Catalog()
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func printReport(w io.Writer, report pipeline.Report) {
	if len(report.Phases) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PHASE\tSTATE\tOUTCOME\tVERDICT\tNOTES\n")
	for _, result := range report.Phases {
		state := engine.PhaseNotStarted
		if status, ok := report.State.Phase(result.Phase); ok {
			state = status.State
		}
		verdict := string(result.Verdict)
		if verdict == "" {
			verdict = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", result.Phase, state, result.Outcome, verdict, notes(result))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nrun %s\n", report.RunID)
}

func notes(result pipeline.PhaseResult) string {
	var parts []string
	if result.Err != nil {
		parts = append(parts, result.Err.Error())
	}
	if n := len(result.Placeholders); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing input(s)", n))
	}
	parts = append(parts, result.Warnings...)
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}
