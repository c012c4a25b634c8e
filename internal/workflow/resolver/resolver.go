package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/phasegen/internal/workflow"
)

// ErrCycle is returned when a phase's steps depend on each other circularly.
var ErrCycle = errors.New("workflow: dependency cycle")

// NodeState represents the resolver's understanding of a step's readiness.
type NodeState string

const (
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateRunning  NodeState = "running"
	NodeStateComplete NodeState = "complete"
	NodeStateFailed   NodeState = "failed"
	NodeStateSkipped  NodeState = "skipped"
)

// Terminal reports whether the state can no longer change.
func (s NodeState) Terminal() bool {
	switch s {
	case NodeStateComplete, NodeStateFailed, NodeStateSkipped:
		return true
	}
	return false
}

// Node captures a step plus its dependency metadata.
type Node struct {
	ID           string
	Step         workflow.StepDefinition
	Dependencies []string
	Dependents   []string

	State     NodeState
	BlockedBy []string
	Err       error
}

// Resolver builds and evaluates a phase's step graph.
type Resolver struct {
	definition workflow.PhaseDefinition
	nodes      map[string]*Node
	orderedIDs []string
	topo       []string
}

// New normalizes the phase definition and builds its graph. Cycles are
// rejected with ErrCycle.
func New(def workflow.PhaseDefinition) (*Resolver, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(normalized.Steps))
	ordered := make([]string, 0, len(normalized.Steps))
	for _, step := range normalized.Steps {
		nodes[step.ID] = &Node{
			ID:           step.ID,
			Step:         step,
			Dependencies: normalized.Dependencies(step.ID),
			State:        NodeStatePending,
		}
		ordered = append(ordered, step.ID)
	}
	for _, id := range ordered {
		node := nodes[id]
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("workflow %s: dependency %s referenced by %s not declared", normalized.ID, depID, node.ID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	r := &Resolver{
		definition: normalized,
		nodes:      nodes,
		orderedIDs: ordered,
	}
	topo, err := r.topologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", normalized.ID, err)
	}
	r.topo = topo
	r.Refresh()
	return r, nil
}

// topologicalOrder walks steps in declaration order, emitting dependencies
// before dependents. Ties keep declaration order.
func (r *Resolver) topologicalOrder() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(r.nodes))
	order := make([]string, 0, len(r.nodes))
	var stack []string
	var visit func(string) error
	visit = func(id string) error {
		switch marks[id] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, candidate := range stack {
				if candidate == id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, stack[start:]...), id)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
		marks[id] = visiting
		stack = append(stack, id)
		for _, dep := range r.declaredOrder(r.nodes[id].Dependencies) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[id] = done
		order = append(order, id)
		return nil
	}
	for _, id := range r.orderedIDs {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// declaredOrder sorts ids by their position in the phase definition.
func (r *Resolver) declaredOrder(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	pos := make(map[string]int, len(r.orderedIDs))
	for i, id := range r.orderedIDs {
		pos[id] = i
	}
	out := append([]string{}, ids...)
	sort.SliceStable(out, func(i, j int) bool { return pos[out[i]] < pos[out[j]] })
	return out
}

// Definition returns a clone of the normalized phase definition.
func (r *Resolver) Definition() workflow.PhaseDefinition {
	return r.definition.Clone()
}

// Order returns step ids in topological order.
func (r *Resolver) Order() []string {
	return append([]string{}, r.topo...)
}

// Nodes returns the nodes in topological order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.topo))
	for _, id := range r.topo {
		out = append(out, r.nodes[id])
	}
	return out
}

// Node retrieves a specific step node.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Mark records a state transition for a step. Terminal steps cannot change.
func (r *Resolver) Mark(id string, state NodeState, err error) error {
	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("workflow: unknown step %s", id)
	}
	if node.State.Terminal() {
		return fmt.Errorf("workflow: step %s already %s", id, node.State)
	}
	node.State = state
	node.Err = err
	if state != NodeStateBlocked {
		node.BlockedBy = nil
	}
	return nil
}

// Refresh re-evaluates readiness of steps that have not started yet.
func (r *Resolver) Refresh() {
	for _, id := range r.topo {
		node := r.nodes[id]
		if node.State.Terminal() || node.State == NodeStateRunning {
			continue
		}
		blockers := r.blockers(node)
		if len(blockers) == 0 {
			node.State = NodeStateReady
			node.BlockedBy = nil
		} else {
			node.State = NodeStateBlocked
			node.BlockedBy = blockers
		}
	}
}

// Ready returns nodes whose dependencies are all complete, in topological
// order.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.topo {
		if node := r.nodes[id]; node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue returns steps that must run to satisfy the requested targets. If no
// targets are provided, every incomplete step is considered. Dependencies are
// returned before the steps that require them, and completed steps are
// skipped.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = append([]string{}, r.topo...)
	}
	visited := make(map[string]bool, len(targets))
	ordered := make([]*Node, 0, len(r.nodes))
	var visit func(string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("workflow: unknown step %s", id)
		}
		visited[id] = true
		for _, dep := range r.declaredOrder(node.Dependencies) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		if node.State != NodeStateComplete {
			ordered = append(ordered, node)
		}
		return nil
	}
	for _, id := range targets {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Abandon marks every step that has not started as skipped and returns
// their ids.
func (r *Resolver) Abandon() []string {
	var skipped []string
	for _, id := range r.topo {
		node := r.nodes[id]
		if node.State.Terminal() || node.State == NodeStateRunning {
			continue
		}
		node.State = NodeStateSkipped
		skipped = append(skipped, id)
	}
	return skipped
}

// Done reports whether every step reached a terminal state.
func (r *Resolver) Done() bool {
	for _, node := range r.nodes {
		if !node.State.Terminal() {
			return false
		}
	}
	return true
}

func (r *Resolver) blockers(node *Node) []string {
	if len(node.Dependencies) == 0 {
		return nil
	}
	blockers := make([]string, 0, len(node.Dependencies))
	for _, depID := range node.Dependencies {
		dep, ok := r.nodes[depID]
		if !ok || dep.State != NodeStateComplete {
			blockers = append(blockers, depID)
		}
	}
	if len(blockers) == 0 {
		return nil
	}
	return blockers
}
