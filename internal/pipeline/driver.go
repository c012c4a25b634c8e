// Package pipeline drives the SDLC phases. Phases run one after another in
// index order; inside a phase, steps run as their dependencies complete,
// up to the configured parallelism. A step commits its document to disk and
// its value to the store before any dependent step is scheduled.
//
// Failures stop at the phase boundary: the phase is marked failed-skipped,
// its unstarted steps are abandoned and the next phase runs regardless.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/phasegen/internal/artifact"
	"github.com/kingrea/phasegen/internal/executor"
	"github.com/kingrea/phasegen/internal/logbook"
	"github.com/kingrea/phasegen/internal/memory"
	"github.com/kingrea/phasegen/internal/metrics"
	"github.com/kingrea/phasegen/internal/prompt"
	"github.com/kingrea/phasegen/internal/role"
	"github.com/kingrea/phasegen/internal/workflow"
	"github.com/kingrea/phasegen/internal/workflow/engine"
	"github.com/kingrea/phasegen/internal/workflow/resolver"
	"github.com/kingrea/phasegen/internal/workflow/scheduler"
)

// ErrEmptyRequest is returned by Seed for a blank system request.
var ErrEmptyRequest = errors.New("pipeline: system request is empty")

const tracerName = "github.com/kingrea/phasegen/internal/pipeline"

// Driver runs phase definitions against a store, an executor and an output
// tree.
type Driver struct {
	store    *memory.Store
	exec     executor.Executor
	writer   *artifact.Writer
	roles    *role.Registry
	renderer *prompt.Renderer
	engine   *engine.Engine
	backend  memory.Backend
	metrics  *metrics.Metrics
	journal  *logbook.Logbook
	tracer   trace.Tracer
	logger   *zap.Logger

	maxParallel int
}

// Option customizes a Driver.
type Option func(*Driver)

// WithRoles replaces the default role registry.
func WithRoles(reg *role.Registry) Option {
	return func(d *Driver) {
		if reg != nil {
			d.roles = reg
		}
	}
}

// WithRenderer replaces the default prompt renderer.
func WithRenderer(r *prompt.Renderer) Option {
	return func(d *Driver) {
		if r != nil {
			d.renderer = r
		}
	}
}

// WithEngine persists run state through eng instead of an in-process
// repository.
func WithEngine(eng *engine.Engine) Option {
	return func(d *Driver) {
		if eng != nil {
			d.engine = eng
		}
	}
}

// WithBackend snapshots the store to backend after every phase.
func WithBackend(backend memory.Backend) Option {
	return func(d *Driver) {
		d.backend = backend
	}
}

// WithMetrics records phase and step metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithJournal appends human readable run entries to journal.
func WithJournal(journal *logbook.Logbook) Option {
	return func(d *Driver) {
		d.journal = journal
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Driver) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxParallel caps concurrent steps within a phase. Values <= 0 remove
// the cap. The default of 1 runs steps strictly one at a time.
func WithMaxParallel(n int) Option {
	return func(d *Driver) {
		d.maxParallel = n
	}
}

// New builds a driver.
func New(store *memory.Store, exec executor.Executor, writer *artifact.Writer, opts ...Option) (*Driver, error) {
	if store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("pipeline: executor is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("pipeline: writer is required")
	}
	d := &Driver{
		store:       store,
		exec:        exec,
		writer:      writer,
		roles:       role.DefaultRegistry(),
		renderer:    prompt.NewRenderer(),
		tracer:      otel.Tracer(tracerName),
		logger:      zap.NewNop(),
		maxParallel: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.engine == nil {
		eng, err := engine.New(&engine.MemoryRepository{})
		if err != nil {
			return nil, err
		}
		d.engine = eng
	}
	d.logger = d.logger.With(zap.String("component", "pipeline"))
	return d, nil
}

// Engine exposes the run state owner.
func (d *Driver) Engine() *engine.Engine {
	return d.engine
}

// Seed stores the system request and writes it to the request folder. The
// store write always happens; a failed file write is returned with the
// path it targeted.
func (d *Driver) Seed(request string) (string, error) {
	if strings.TrimSpace(request) == "" {
		return "", ErrEmptyRequest
	}
	d.store.Set(workflow.RequestPhase, workflow.RequestKey, request)
	ref := artifact.NewRef(workflow.RequestKey, workflow.RequestFolder, workflow.RequestFile)
	path, err := d.writer.Write(ref, request)
	if err != nil {
		d.metrics.PersistenceError("document")
		d.logger.Warn("seed document not written", zap.String("path", path), zap.Error(err))
		return path, err
	}
	d.logger.Info("system request seeded", zap.String("path", path), zap.Int("bytes", len(request)))
	return path, nil
}

// Run executes phases in index order. The error is only non-nil when ctx is
// cancelled; phase failures are reported on the Report.
func (d *Driver) Run(ctx context.Context, phases []workflow.PhaseDefinition) (Report, error) {
	ordered := make([]workflow.PhaseDefinition, len(phases))
	copy(ordered, phases)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	state, err := d.engine.Start(ordered)
	if err != nil {
		d.persistFailure(d.logger, "state", err)
	}
	report := Report{RunID: state.RunID}
	journal := d.journal.Scoped(shortID(state.RunID))
	logger := d.logger.With(zap.String("run_id", state.RunID))

	ctx, span := d.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", state.RunID),
		attribute.Int("run.phases", len(ordered)),
	))
	defer span.End()

	logger.Info("run started", zap.Strings("phases", phaseIDs(ordered)), zap.String("executor", d.exec.Name()))
	journal.Info("run started: %s (executor %s)", strings.Join(phaseIDs(ordered), ", "), d.exec.Name())

	for _, def := range ordered {
		if err := ctx.Err(); err != nil {
			journal.Warn("run cancelled before %s", def.ID)
			logger.Warn("run cancelled", zap.String("next_phase", def.ID), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			report.State = d.engine.State()
			return report, fmt.Errorf("pipeline: run cancelled: %w", err)
		}
		report.Phases = append(report.Phases, d.runPhase(ctx, def, journal, logger))
	}

	if err := d.engine.Complete(); err != nil {
		d.persistFailure(logger, "state", err)
	}
	report.State = d.engine.State()
	failed := report.Failed()
	logger.Info("run finished", zap.Int("phases", len(report.Phases)), zap.Strings("failed", failed))
	if len(failed) > 0 {
		journal.Warn("run finished with failed phases: %s", strings.Join(failed, ", "))
	} else {
		journal.Info("run finished")
	}
	return report, nil
}

type phaseRun struct {
	def     workflow.PhaseDefinition
	res     *resolver.Resolver
	steps   map[string]StepResult
	result  *PhaseResult
	logger  *zap.Logger
	journal *logbook.Logbook
}

func (d *Driver) runPhase(ctx context.Context, def workflow.PhaseDefinition, journal *logbook.Logbook, logger *zap.Logger) PhaseResult {
	ctx, span := d.tracer.Start(ctx, "pipeline.phase", trace.WithAttributes(
		attribute.String("phase.id", def.ID),
		attribute.Int("phase.index", def.Index),
	))
	defer span.End()

	result := PhaseResult{Phase: def.ID, Name: def.Name, Folder: def.Folder}
	run := &phaseRun{
		def:     def,
		steps:   map[string]StepResult{},
		result:  &result,
		logger:  logger.With(zap.String("phase", def.ID)),
		journal: journal.Scoped(def.ID),
	}

	if err := d.engine.BeginPhase(def.ID); err != nil {
		if !errors.Is(err, engine.ErrSaveState) {
			result.Err = err
			result.Outcome = engine.OutcomeFailed
			run.logger.Error("phase not started", zap.Error(err))
			run.journal.Error("not started: %v", err)
			span.SetStatus(codes.Error, err.Error())
			d.metrics.ObservePhase(def.ID, string(result.Outcome))
			return result
		}
		run.warn(d.persistFailure(run.logger, "state", err))
	}
	run.logger.Info("phase started", zap.Int("steps", len(def.Steps)), zap.String("folder", def.Folder))
	run.journal.Info("started (%d steps)", len(def.Steps))

	if err := d.execute(ctx, run); err != nil {
		result.Err = err
		d.abandon(run)
	}
	d.collect(run)

	if d.backend != nil {
		if err := d.store.Persist(context.WithoutCancel(ctx), d.backend); err != nil {
			run.warn(d.persistFailure(run.logger, "memory", err))
		}
	}

	result.Outcome = outcomeFor(result)
	if err := d.engine.FinishPhase(def.ID, result.Outcome, string(result.Verdict), result.Err); err != nil {
		if errors.Is(err, engine.ErrSaveState) {
			run.warn(d.persistFailure(run.logger, "state", err))
			result.Outcome = outcomeFor(result)
		} else {
			run.logger.Error("phase not closed", zap.Error(err))
		}
	}

	d.metrics.ObservePhase(def.ID, string(result.Outcome))
	d.metrics.AddPlaceholders(def.ID, len(result.Placeholders))
	span.SetAttributes(
		attribute.String("phase.outcome", string(result.Outcome)),
		attribute.String("phase.verdict", string(result.Verdict)),
		attribute.Int("phase.placeholders", len(result.Placeholders)),
	)

	switch result.Outcome {
	case engine.OutcomeFailed:
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		run.logger.Error("phase failed, skipping to next phase", zap.Error(result.Err))
		run.journal.Error("failed-skipped: %v", result.Err)
	case engine.OutcomeDegraded:
		run.logger.Warn("phase completed degraded",
			zap.Strings("placeholders", result.Placeholders),
			zap.Strings("warnings", result.Warnings),
			zap.String("verdict", string(result.Verdict)),
		)
		run.journal.Warn("completed degraded (verdict %s, %d placeholders, %d warnings)",
			verdictLabel(result.Verdict), len(result.Placeholders), len(result.Warnings))
	default:
		run.logger.Info("phase completed", zap.String("verdict", string(result.Verdict)))
		run.journal.Info("completed (verdict %s)", verdictLabel(result.Verdict))
	}
	return result
}

// execute runs the phase setup and its step loop. Resolver state is only
// touched from this goroutine; step goroutines report back over done.
func (d *Driver) execute(ctx context.Context, run *phaseRun) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: phase %s panicked: %v", run.def.ID, r)
		}
	}()

	def := run.def
	if err := def.Validate(); err != nil {
		return fmt.Errorf("pipeline: setup %s: %w", def.ID, err)
	}
	res, err := resolver.New(def)
	if err != nil {
		return fmt.Errorf("pipeline: setup %s: %w", def.ID, err)
	}
	run.res = res
	templates, err := d.renderer.Prepare(def)
	if err != nil {
		return fmt.Errorf("pipeline: setup %s: %w", def.ID, err)
	}
	if err := d.writer.EnsureDir(def.Folder); err != nil {
		return fmt.Errorf("pipeline: setup %s: %w", def.ID, err)
	}
	sched, err := scheduler.New(res)
	if err != nil {
		return err
	}

	limit := d.parallelism(def)
	done := make(chan StepResult, len(def.Steps))
	running := map[string]struct{}{}
	throttled := map[string]struct{}{}
	group, groupCtx := errgroup.WithContext(ctx)
	var failure error
	var last scheduler.Batch
	for {
		res.Refresh()
		if failure == nil && ctx.Err() == nil {
			batch, err := sched.Next(scheduler.Request{MaxParallel: limit, Running: keys(running)})
			if err != nil {
				failure = err
			}
			last = batch
			for _, id := range batch.Held(scheduler.ReasonConcurrency, res.Order()) {
				if _, seen := throttled[id]; !seen {
					throttled[id] = struct{}{}
					run.logger.Debug("step waiting for a free slot", zap.String("step", id), zap.Int("max_parallel", limit))
				}
			}
			for _, node := range batch.Start {
				if err := res.Mark(node.ID, resolver.NodeStateRunning, nil); err != nil {
					failure = err
					break
				}
				running[node.ID] = struct{}{}
				step := node.Step
				d.record(run, StepResult{ID: step.ID, Key: step.StepKey(), State: resolver.NodeStateRunning})
				group.Go(func() error {
					sr := d.runStep(groupCtx, run, templates, step)
					done <- sr
					return sr.Err
				})
			}
		}
		if len(running) == 0 {
			break
		}
		sr := <-done
		delete(running, sr.ID)
		_, sr.Throttled = throttled[sr.ID]
		sr.State = resolver.NodeStateComplete
		if sr.Err != nil {
			sr.State = resolver.NodeStateFailed
			if failure == nil {
				failure = sr.Err
			}
		}
		if err := res.Mark(sr.ID, sr.State, sr.Err); err != nil && failure == nil {
			failure = err
		}
		run.steps[sr.ID] = sr
		d.record(run, sr)
	}
	_ = group.Wait()

	if failure != nil {
		return failure
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: %s interrupted: %w", def.ID, err)
	}
	if !res.Done() {
		return fmt.Errorf("pipeline: %s stalled: %s", def.ID, describeHolds(last, res.Order()))
	}
	return nil
}

func (d *Driver) runStep(ctx context.Context, run *phaseRun, templates *prompt.PhaseTemplates, step workflow.StepDefinition) (sr StepResult) {
	started := time.Now()
	sr = StepResult{ID: step.ID, Key: step.StepKey()}
	logger := run.logger.With(zap.String("step", step.ID))
	ctx, span := d.tracer.Start(ctx, "pipeline.step", trace.WithAttributes(
		attribute.String("phase.id", run.def.ID),
		attribute.String("step.id", step.ID),
		attribute.Bool("step.gate", step.Gate),
	))
	defer func() {
		if r := recover(); r != nil {
			sr.Err = fmt.Errorf("pipeline: step %s panicked: %v", step.ID, r)
		}
		sr.Elapsed = time.Since(started)
		if sr.Err != nil {
			span.RecordError(sr.Err)
			span.SetStatus(codes.Error, sr.Err.Error())
			logger.Error("step failed", zap.Error(sr.Err), zap.Duration("elapsed", sr.Elapsed))
			run.journal.Error("%s failed: %v", step.ID, sr.Err)
		}
		d.metrics.ObserveStep(run.def.ID, step.ID, sr.Elapsed, sr.Err != nil)
		span.End()
	}()

	rendered, err := templates.Render(step.ID, d.store)
	if err != nil {
		sr.Err = err
		return sr
	}
	if len(rendered.Missing) > 0 {
		sr.Placeholders = rendered.Missing
		logger.Warn("upstream values missing, placeholder used", zap.Strings("missing", rendered.Missing))
		run.journal.Warn("%s: placeholder used for %s", step.ID, strings.Join(rendered.Missing, ", "))
	}

	persona, err := d.roles.Resolve(step.Role)
	if err != nil {
		sr.Err = fmt.Errorf("pipeline: step %s: %w", step.ID, err)
		return sr
	}
	output, err := d.exec.Execute(ctx, executor.Request{
		Phase:    run.def.ID,
		Step:     step.ID,
		Role:     persona.ID,
		Persona:  persona.Persona(),
		Prompt:   rendered.Text,
		Expected: step.Expected,
		Gate:     step.Gate,
	})
	if err != nil {
		sr.Err = fmt.Errorf("pipeline: step %s: %s executor: %w", step.ID, d.exec.Name(), err)
		return sr
	}

	ref := artifact.NewRef(sr.Key, run.def.Folder, step.Output)
	path, err := d.writer.Write(ref, output)
	sr.Path = path
	if err != nil {
		sr.WriteErr = err
		d.metrics.PersistenceError("document")
		logger.Warn("document not written, value kept in store", zap.String("path", path), zap.Error(err))
	}
	d.store.Set(run.def.ID, sr.Key, output)

	if step.Gate {
		sr.Verdict = ParseVerdict(output)
		span.SetAttributes(attribute.String("gate.verdict", string(sr.Verdict)))
	}
	logger.Info("step completed", zap.String("path", path), zap.Duration("elapsed", time.Since(started)))
	return sr
}

// abandon marks unstarted steps skipped after a failure.
func (d *Driver) abandon(run *phaseRun) {
	if run.res == nil {
		return
	}
	for _, id := range run.res.Abandon() {
		key := id
		if node, ok := run.res.Node(id); ok {
			key = node.Step.StepKey()
		}
		sr := StepResult{ID: id, Key: key, State: resolver.NodeStateSkipped}
		run.steps[id] = sr
		d.record(run, sr)
	}
}

// collect folds step results into the phase result in declaration order.
func (d *Driver) collect(run *phaseRun) {
	result := run.result
	seen := map[string]struct{}{}
	for _, step := range run.def.Steps {
		sr, ok := run.steps[step.ID]
		if !ok {
			continue
		}
		result.Steps = append(result.Steps, sr)
		for _, ref := range sr.Placeholders {
			if _, dup := seen[ref]; !dup {
				seen[ref] = struct{}{}
				result.Placeholders = append(result.Placeholders, ref)
			}
		}
		if sr.WriteErr != nil {
			run.warn(fmt.Sprintf("document %s: %v", sr.Key, sr.WriteErr))
		}
		if step.Gate && sr.State == resolver.NodeStateComplete {
			result.Verdict = sr.Verdict
		}
	}
	sort.Strings(result.Placeholders)
}

func (d *Driver) record(run *phaseRun, sr StepResult) {
	status := engine.StepStatus{
		ID:           sr.ID,
		Key:          sr.Key,
		State:        sr.State,
		Path:         sr.Path,
		Placeholders: sr.Placeholders,
	}
	if sr.Err != nil {
		status.Error = sr.Err.Error()
	}
	if err := d.engine.RecordStep(run.def.ID, status); err != nil {
		if errors.Is(err, engine.ErrSaveState) {
			run.warn(d.persistFailure(run.logger, "state", err))
			return
		}
		run.logger.Error("step state not recorded", zap.String("step", sr.ID), zap.Error(err))
	}
}

func (d *Driver) persistFailure(logger *zap.Logger, target string, err error) string {
	d.metrics.PersistenceError(target)
	logger.Warn("persistence failed", zap.String("target", target), zap.Error(err))
	return fmt.Sprintf("%s: %v", target, err)
}

func (d *Driver) parallelism(def workflow.PhaseDefinition) int {
	limit := d.maxParallel
	if def.Runtime.MaxParallel > 0 && (limit <= 0 || def.Runtime.MaxParallel < limit) {
		limit = def.Runtime.MaxParallel
	}
	return limit
}

func (r *phaseRun) warn(msg string) {
	for _, existing := range r.result.Warnings {
		if existing == msg {
			return
		}
	}
	r.result.Warnings = append(r.result.Warnings, msg)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func describeHolds(batch scheduler.Batch, order []string) string {
	var parts []string
	for _, id := range order {
		if hold, ok := batch.Wait[id]; ok {
			parts = append(parts, fmt.Sprintf("%s (%s)", id, hold))
		}
	}
	if len(parts) == 0 {
		return "no step can start"
	}
	return strings.Join(parts, ", ")
}

func phaseIDs(defs []workflow.PhaseDefinition) []string {
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	return ids
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func verdictLabel(v Verdict) string {
	if v == VerdictNone {
		return "none"
	}
	return string(v)
}
