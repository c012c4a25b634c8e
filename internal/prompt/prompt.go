// Package prompt renders step prompts from text/template sources.
//
// Templates are parsed once when a phase is set up, so a broken template
// fails the phase before any step runs. Rendering happens per step against
// the live key/value store:
//
//	{{request}}                     the seed system request
//	{{recall "initiation" "vision"}} a value from any phase
//	{{upstream "conops"}}           a value from the current phase
//
// Missing values render as the configured placeholder and are reported on
// the Rendered result.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/workflow"
)

// DefaultPlaceholder substitutes any value missing from the store.
const DefaultPlaceholder = "not available"

// Source is the read side of the key/value store.
type Source interface {
	Lookup(phase, key string) (string, bool)
}

// Renderer parses phase templates.
type Renderer struct {
	placeholder  string
	overridesDir string
	logger       *zap.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithPlaceholder replaces DefaultPlaceholder.
func WithPlaceholder(text string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(text) != "" {
			r.placeholder = text
		}
	}
}

// WithOverridesDir makes <dir>/<phase>/<step>.tmpl take precedence over the
// prompt declared in the phase definition.
func WithOverridesDir(dir string) Option {
	return func(r *Renderer) {
		r.overridesDir = dir
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRenderer builds a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{placeholder: DefaultPlaceholder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Placeholder returns the text substituted for missing values.
func (r *Renderer) Placeholder() string {
	return r.placeholder
}

// Prepare parses every step template of a normalized phase definition.
func (r *Renderer) Prepare(def workflow.PhaseDefinition) (*PhaseTemplates, error) {
	set := &PhaseTemplates{
		def:         def,
		placeholder: r.placeholder,
		steps:       make(map[string]*template.Template, len(def.Steps)),
		sources:     make(map[string]string, len(def.Steps)),
	}
	for _, step := range def.Steps {
		text, origin, err := r.source(def, step)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(step.ID).Funcs(stubFuncs()).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("prompt: %s/%s (%s): %w", def.ID, step.ID, origin, err)
		}
		set.steps[step.ID] = tmpl
		set.sources[step.ID] = origin
		if origin != "built-in" && origin != "definition" {
			r.logger.Debug("prompt override loaded", zap.String("phase", def.ID), zap.String("step", step.ID), zap.String("path", origin))
		}
	}
	return set, nil
}

func (r *Renderer) source(def workflow.PhaseDefinition, step workflow.StepDefinition) (string, string, error) {
	if r.overridesDir != "" {
		path := filepath.Join(r.overridesDir, def.ID, step.ID+".tmpl")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			return string(data), path, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", "", fmt.Errorf("prompt: read override %s: %w", path, err)
		}
	}
	if strings.TrimSpace(step.Prompt) != "" {
		return step.Prompt, "definition", nil
	}
	if step.Gate {
		return defaultGateTemplate, "built-in", nil
	}
	return defaultStepTemplate, "built-in", nil
}

// PhaseTemplates holds the parsed templates of one phase.
type PhaseTemplates struct {
	def         workflow.PhaseDefinition
	placeholder string
	steps       map[string]*template.Template
	sources     map[string]string
}

// Source reports where a step's template came from: "built-in",
// "definition" or an override file path.
func (p *PhaseTemplates) Source(stepID string) string {
	return p.sources[stepID]
}

// Rendered is the output of a single render.
type Rendered struct {
	Text string
	// Missing lists "<phase>/<key>" references that fell back to the
	// placeholder, sorted and deduplicated.
	Missing []string
}

// Render executes a step's template against src.
func (p *PhaseTemplates) Render(stepID string, src Source) (Rendered, error) {
	base, ok := p.steps[stepID]
	if !ok {
		return Rendered{}, fmt.Errorf("prompt: %s has no step %s", p.def.ID, stepID)
	}
	step, _ := p.def.Step(stepID)
	tracker := &missingTracker{seen: map[string]struct{}{}}
	tmpl, err := base.Clone()
	if err != nil {
		return Rendered{}, fmt.Errorf("prompt: clone %s/%s: %w", p.def.ID, stepID, err)
	}
	tmpl.Funcs(p.funcs(src, tracker))
	var b strings.Builder
	if err := tmpl.Execute(&b, p.data(step)); err != nil {
		return Rendered{}, fmt.Errorf("prompt: render %s/%s: %w", p.def.ID, stepID, err)
	}
	return Rendered{Text: b.String(), Missing: tracker.list()}, nil
}

// Data is the dot value of every step template.
type Data struct {
	Phase     string
	PhaseName string
	Step      string
	StepName  string
	Expected  string
	// Context lists the same-phase steps this step depends on.
	Context []ContextRef
	// Focus and Reads are only set for the quality gate.
	Focus string
	Reads []ContextRef
}

// ContextRef names a stored value a template may recall.
type ContextRef struct {
	Phase string
	Key   string
	Title string
}

func (p *PhaseTemplates) data(step workflow.StepDefinition) Data {
	d := Data{
		Phase:     p.def.ID,
		PhaseName: p.def.Name,
		Step:      step.ID,
		StepName:  step.Name,
		Expected:  step.Expected,
	}
	for _, depID := range step.DependsOn {
		dep, ok := p.def.Step(depID)
		if !ok {
			continue
		}
		d.Context = append(d.Context, ContextRef{Phase: p.def.ID, Key: dep.StepKey(), Title: dep.Name})
	}
	if step.Gate && p.def.Gate != nil {
		d.Focus = p.def.Gate.Focus
		for _, key := range p.def.Gate.Reads {
			d.Reads = append(d.Reads, ContextRef{Phase: p.def.ID, Key: key, Title: p.titleForKey(key)})
		}
		d.Context = nil
	}
	return d
}

func (p *PhaseTemplates) titleForKey(key string) string {
	for _, step := range p.def.Steps {
		if step.StepKey() == key {
			return step.Name
		}
	}
	return key
}

func (p *PhaseTemplates) funcs(src Source, tracker *missingTracker) template.FuncMap {
	recall := func(phase, key string) string {
		if src != nil {
			if value, ok := src.Lookup(phase, key); ok {
				return value
			}
		}
		tracker.add(phase + "/" + key)
		return p.placeholder
	}
	return template.FuncMap{
		"recall":  recall,
		"request": func() string { return recall(workflow.RequestPhase, workflow.RequestKey) },
		"upstream": func(key string) string {
			return recall(p.def.ID, key)
		},
		"placeholder": func() string { return p.placeholder },
	}
}

func stubFuncs() template.FuncMap {
	return template.FuncMap{
		"recall":      func(string, string) string { return "" },
		"request":     func() string { return "" },
		"upstream":    func(string) string { return "" },
		"placeholder": func() string { return "" },
	}
}

type missingTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (m *missingTracker) add(ref string) {
	m.mu.Lock()
	m.seen[ref] = struct{}{}
	m.mu.Unlock()
}

func (m *missingTracker) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.seen))
	for ref := range m.seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

const defaultStepTemplate = `System request:
---
{{request}}
---
{{range .Context}}
{{.Title}}:
---
{{recall .Phase .Key}}
---
{{end}}
Write the {{.StepName}} document for the {{.PhaseName}} phase.`

const defaultGateTemplate = `As project manager, review every main output of the {{.PhaseName}} phase.
Check that the documents are complete and clear, consistent with the project goals and requirements, and free of major errors or omissions.
{{range .Reads}}
{{.Title}}:
---
{{recall .Phase .Key}}
---
{{end}}{{if .Focus}}
Pay particular attention to: {{.Focus}}
{{end}}
Write a detailed validation report. End it with a single line "VERDICT: PASS" or "VERDICT: FAIL".`
