package role

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Role is the persona a step is executed as.
type Role struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Goal      string `json:"goal" yaml:"goal"`
	Backstory string `json:"backstory" yaml:"backstory"`
}

// Validate ensures the role can be registered.
func (r Role) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("role: id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("role: %s: name is required", r.ID)
	}
	return nil
}

// Persona renders the role as an executor system instruction.
func (r Role) Persona() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s.", r.Name)
	if r.Goal != "" {
		fmt.Fprintf(&b, "\nGoal: %s", r.Goal)
	}
	if r.Backstory != "" {
		fmt.Fprintf(&b, "\nBackground: %s", r.Backstory)
	}
	return b.String()
}

// Registry maintains known roles.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{roles: map[string]Role{}}
}

// Register installs a role. Returns an error if the ID already exists.
func (r *Registry) Register(role Role) error {
	if err := role.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[role.ID]; exists {
		return fmt.Errorf("role: %s already registered", role.ID)
	}
	r.roles[role.ID] = role
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(role Role) {
	if err := r.Register(role); err != nil {
		panic(err)
	}
}

// Put registers or replaces a role.
func (r *Registry) Put(role Role) error {
	if err := role.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID] = role
	return nil
}

// Resolve looks a role up by ID.
func (r *Registry) Resolve(id string) (Role, error) {
	r.mu.RLock()
	role, ok := r.roles[id]
	r.mu.RUnlock()
	if !ok {
		return Role{}, fmt.Errorf("role: unknown id %s", id)
	}
	return role, nil
}

// IDs returns a sorted list of registered role identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.roles))
	for id := range r.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
