package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// GateStepID is the step identifier assigned to a phase's quality gate.
const GateStepID = "quality-gate"

// GateKey is the store key a quality gate records its report under.
const GateKey = "validation_report"

// DefaultGateRole reviews every phase unless a definition overrides it.
const DefaultGateRole = "project-manager"

// PhaseDefinition declares one pipeline phase: its output folder, the steps
// it runs and the quality gate that closes it.
type PhaseDefinition struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Index       int                `json:"index" yaml:"index"`
	Folder      string             `json:"folder,omitempty" yaml:"folder,omitempty"`
	Role        string             `json:"role,omitempty" yaml:"role,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepDefinition   `json:"steps" yaml:"steps"`
	Gate        *GateDefinition    `json:"gate,omitempty" yaml:"gate,omitempty"`
	Runtime     PhaseRuntimeConfig `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// StepDefinition declares a single prompt -> document step.
type StepDefinition struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	// Key is the store key the output is recorded under. Defaults to ID.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	// Output is the file name, extension included, inside the phase folder.
	Output    string   `json:"output" yaml:"output"`
	Prompt    string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Expected  string   `json:"expected,omitempty" yaml:"expected,omitempty"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Gate      bool     `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// GateDefinition parameterizes the quality gate appended to a phase.
type GateDefinition struct {
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	// Focus lists the documents the reviewer should pay attention to.
	Focus string `json:"focus,omitempty" yaml:"focus,omitempty"`
	// Reads names the store keys read back for review. Defaults to every
	// step key of the phase.
	Reads  []string `json:"reads,omitempty" yaml:"reads,omitempty"`
	Output string   `json:"output,omitempty" yaml:"output,omitempty"`
	Prompt string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// PhaseRuntimeConfig configures execution constraints for a phase.
type PhaseRuntimeConfig struct {
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

func (cfg PhaseRuntimeConfig) normalized() PhaseRuntimeConfig {
	if cfg.MaxParallel < 0 {
		cfg.MaxParallel = 0
	}
	return cfg
}

// FolderName returns the conventional "<index>_<id>" output folder.
func FolderName(index int, id string) string {
	return fmt.Sprintf("%d_%s", index, id)
}

// Clone returns a deep copy of the phase definition.
func (def PhaseDefinition) Clone() PhaseDefinition {
	clone := def
	if len(def.Steps) > 0 {
		clone.Steps = make([]StepDefinition, len(def.Steps))
		for i, step := range def.Steps {
			clone.Steps[i] = step.Clone()
		}
	}
	if def.Gate != nil {
		gate := *def.Gate
		gate.Reads = cloneStringSlice(def.Gate.Reads)
		clone.Gate = &gate
	}
	return clone
}

// Clone returns a deep copy of the step definition.
func (step StepDefinition) Clone() StepDefinition {
	clone := step
	clone.DependsOn = cloneStringSlice(step.DependsOn)
	return clone
}

// StepKey returns the store key for the step.
func (step StepDefinition) StepKey() string {
	if step.Key != "" {
		return step.Key
	}
	return step.ID
}

// Normalized clones the definition, fills defaults, appends the quality gate
// step when a gate is declared, and validates the result.
func (def PhaseDefinition) Normalized() (PhaseDefinition, error) {
	clone := def.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.Name == "" {
		clone.Name = titleCase(clone.ID)
	}
	if clone.Folder == "" && clone.ID != "" {
		clone.Folder = FolderName(clone.Index, clone.ID)
	}
	clone.Runtime = clone.Runtime.normalized()
	steps := make([]StepDefinition, 0, len(clone.Steps)+1)
	var gateStep *StepDefinition
	for _, step := range clone.Steps {
		step.ID = strings.TrimSpace(step.ID)
		if step.Gate || step.ID == GateStepID {
			copyStep := step
			gateStep = &copyStep
			continue
		}
		if step.Role == "" {
			step.Role = clone.Role
		}
		if step.Key == "" {
			step.Key = step.ID
		}
		if step.Name == "" {
			step.Name = titleCase(step.ID)
		}
		step.DependsOn = mergeDependencies(nil, step.DependsOn)
		steps = append(steps, step)
	}
	if clone.Gate != nil || gateStep != nil {
		if clone.Gate == nil {
			clone.Gate = &GateDefinition{Role: gateStep.Role, Output: gateStep.Output, Prompt: gateStep.Prompt}
		}
		gate := clone.Gate
		if gate.Role == "" {
			gate.Role = DefaultGateRole
		}
		if gate.Output == "" {
			gate.Output = fmt.Sprintf("validation_report_%s.md", clone.ID)
		}
		ids := make([]string, 0, len(steps))
		keys := make([]string, 0, len(steps))
		for _, step := range steps {
			ids = append(ids, step.ID)
			keys = append(keys, step.Key)
		}
		if len(gate.Reads) == 0 {
			gate.Reads = keys
		}
		steps = append(steps, StepDefinition{
			ID:        GateStepID,
			Name:      "Quality Gate",
			Role:      gate.Role,
			Key:       GateKey,
			Output:    gate.Output,
			Prompt:    gate.Prompt,
			Expected:  fmt.Sprintf("Validation report for the %s phase ending with a VERDICT line.", clone.Name),
			DependsOn: mergeDependencies(nil, ids),
			Gate:      true,
		})
	}
	clone.Steps = steps
	if err := clone.Validate(); err != nil {
		return PhaseDefinition{}, err
	}
	return clone, nil
}

// Validate ensures the phase definition is self-consistent.
func (def PhaseDefinition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow: phase id is required")
	}
	if strings.ContainsAny(def.ID, " /\\") {
		return fmt.Errorf("workflow: phase id %q must not contain spaces or separators", def.ID)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("workflow %s: at least one step is required", def.ID)
	}
	if def.Runtime.MaxParallel < 0 {
		return fmt.Errorf("workflow %s runtime: max_parallel must be >= 0", def.ID)
	}
	ids := map[string]struct{}{}
	keys := map[string]string{}
	for idx, step := range def.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("workflow %s step[%d]: %w", def.ID, idx, err)
		}
		if _, exists := ids[step.ID]; exists {
			return fmt.Errorf("workflow %s: duplicate step id %s", def.ID, step.ID)
		}
		ids[step.ID] = struct{}{}
		key := step.StepKey()
		if owner, exists := keys[key]; exists {
			return fmt.Errorf("workflow %s: steps %s and %s both write key %s", def.ID, owner, step.ID, key)
		}
		keys[key] = step.ID
	}
	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return fmt.Errorf("workflow %s: step %s depends on itself", def.ID, step.ID)
			}
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("workflow %s: dependency %s -> %s references unknown step", def.ID, step.ID, dep)
			}
		}
	}
	return nil
}

// Validate ensures the step is usable.
func (step StepDefinition) Validate() error {
	if step.ID == "" {
		return fmt.Errorf("workflow: step id is required")
	}
	if strings.TrimSpace(step.Output) == "" {
		return fmt.Errorf("workflow: step %s output file is required", step.ID)
	}
	if strings.ContainsAny(step.Output, `/\`) {
		return fmt.Errorf("workflow: step %s output must be a bare file name", step.ID)
	}
	deps := append([]string{}, step.DependsOn...)
	sort.Strings(deps)
	for i := 1; i < len(deps); i++ {
		if deps[i] == deps[i-1] {
			return fmt.Errorf("workflow: step %s has duplicate dependency on %s", step.ID, deps[i])
		}
	}
	return nil
}

// StepIDs returns step identifiers in declaration order.
func (def PhaseDefinition) StepIDs() []string {
	ids := make([]string, 0, len(def.Steps))
	for _, step := range def.Steps {
		ids = append(ids, step.ID)
	}
	return ids
}

// Step returns the step with the given id.
func (def PhaseDefinition) Step(id string) (StepDefinition, bool) {
	for _, step := range def.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return StepDefinition{}, false
}

// Dependencies returns the dependency list for a step.
func (def PhaseDefinition) Dependencies(id string) []string {
	step, ok := def.Step(id)
	if !ok {
		return nil
	}
	return cloneStringSlice(step.DependsOn)
}

// Catalog is the ordered list of phases a pipeline runs.
type Catalog struct {
	Phases []PhaseDefinition `json:"phases" yaml:"phases"`
}

// Normalized normalizes every phase and checks ids and folders are unique.
func (c Catalog) Normalized() (Catalog, error) {
	if len(c.Phases) == 0 {
		return Catalog{}, fmt.Errorf("workflow: catalog has no phases")
	}
	out := Catalog{Phases: make([]PhaseDefinition, 0, len(c.Phases))}
	ids := map[string]struct{}{}
	folders := map[string]string{}
	for _, phase := range c.Phases {
		normalized, err := phase.Normalized()
		if err != nil {
			return Catalog{}, err
		}
		if _, exists := ids[normalized.ID]; exists {
			return Catalog{}, fmt.Errorf("workflow: duplicate phase id %s", normalized.ID)
		}
		ids[normalized.ID] = struct{}{}
		if owner, exists := folders[normalized.Folder]; exists {
			return Catalog{}, fmt.Errorf("workflow: phases %s and %s share folder %s", owner, normalized.ID, normalized.Folder)
		}
		folders[normalized.Folder] = normalized.ID
		out.Phases = append(out.Phases, normalized)
	}
	return out, nil
}

// Phase returns the phase with the given id.
func (c Catalog) Phase(id string) (PhaseDefinition, bool) {
	for _, phase := range c.Phases {
		if phase.ID == id {
			return phase, true
		}
	}
	return PhaseDefinition{}, false
}

// IDs returns phase identifiers in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Phases))
	for _, phase := range c.Phases {
		ids = append(ids, phase.ID)
	}
	return ids
}

// Select returns the phases named by ids, kept in catalog order. An empty ids
// list selects every phase.
func (c Catalog) Select(ids ...string) (Catalog, error) {
	if len(ids) == 0 {
		return c, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := c.Phase(id); !ok {
			return Catalog{}, fmt.Errorf("workflow: unknown phase %s", id)
		}
		wanted[id] = struct{}{}
	}
	out := Catalog{}
	for _, phase := range c.Phases {
		if _, ok := wanted[phase.ID]; ok {
			out.Phases = append(out.Phases, phase)
		}
	}
	return out, nil
}

func titleCase(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

func mergeDependencies(existing, adds []string) []string {
	if len(adds) == 0 && len(existing) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, id := range existing {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	for _, id := range adds {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
