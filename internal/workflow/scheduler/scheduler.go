package scheduler

import (
	"fmt"
	"strings"

	"github.com/kingrea/phasegen/internal/workflow/resolver"
)

// Scheduler picks the next steps of a phase from its resolver.
type Scheduler struct {
	resolver *resolver.Resolver
}

// New wires a Scheduler to a resolver.
func New(res *resolver.Resolver) (*Scheduler, error) {
	if res == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a resolver")
	}
	return &Scheduler{resolver: res}, nil
}

// Request is the driver's view of the phase when it asks for more work.
type Request struct {
	// MaxParallel caps active steps, Running included. <= 0 is unlimited.
	MaxParallel int
	// Running lists step ids the driver has in flight.
	Running []string
}

// Batch is the scheduler's answer: steps to start now and, for every other
// unfinished step, why it has to wait.
type Batch struct {
	Start []*resolver.Node
	Wait  map[string]Hold
}

// Hold explains why a step was not started.
type Hold struct {
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Reason classifies a Hold.
type Reason string

const (
	// ReasonDependencies means upstream steps have not committed yet.
	ReasonDependencies Reason = "dependencies"
	// ReasonConcurrency means the step is ready but the phase is at its limit.
	ReasonConcurrency Reason = "concurrency"
	// ReasonRunning means the step is already in flight.
	ReasonRunning Reason = "running"
)

func (h Hold) String() string {
	if h.Detail == "" {
		return string(h.Reason)
	}
	return string(h.Reason) + ": " + h.Detail
}

// Next returns the ready steps that fit under the limit, in dependency order.
func (s *Scheduler) Next(req Request) (Batch, error) {
	pending, err := s.resolver.Queue()
	if err != nil {
		return Batch{}, err
	}
	inFlight := make(map[string]struct{}, len(req.Running))
	for _, id := range req.Running {
		if id != "" {
			inFlight[id] = struct{}{}
		}
	}
	for _, node := range pending {
		if node.State == resolver.NodeStateRunning {
			inFlight[node.ID] = struct{}{}
		}
	}
	slots := -1
	if req.MaxParallel > 0 {
		slots = max(0, req.MaxParallel-len(inFlight))
	}

	batch := Batch{}
	for _, node := range pending {
		if node.State.Terminal() {
			continue
		}
		if _, ok := inFlight[node.ID]; ok {
			batch.hold(node.ID, Hold{Reason: ReasonRunning})
			continue
		}
		if node.State != resolver.NodeStateReady {
			batch.hold(node.ID, Hold{Reason: ReasonDependencies, Detail: strings.Join(node.BlockedBy, ", ")})
			continue
		}
		if slots == 0 {
			batch.hold(node.ID, Hold{Reason: ReasonConcurrency, Detail: fmt.Sprintf("max parallel %d reached", req.MaxParallel)})
			continue
		}
		batch.Start = append(batch.Start, node)
		if slots > 0 {
			slots--
		}
	}
	return batch, nil
}

// Held returns the ids held back for reason, in dependency order.
func (b Batch) Held(reason Reason, order []string) []string {
	var ids []string
	for _, id := range order {
		if hold, ok := b.Wait[id]; ok && hold.Reason == reason {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *Batch) hold(id string, h Hold) {
	if b.Wait == nil {
		b.Wait = make(map[string]Hold)
	}
	b.Wait[id] = h
}
