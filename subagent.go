package agentcore

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// Subagent is a delegate that runs one task on behalf of the parent agent.
type Subagent interface {
	Run(ctx context.Context, task any) (any, error)
}

// SubagentFunc adapts a function to Subagent.
type SubagentFunc func(ctx context.Context, task any) (any, error)

func (f SubagentFunc) Run(ctx context.Context, task any) (any, error) {
	return f(ctx, task)
}

// SubagentDefinition is an immutable descriptor of a delegate agent.
type SubagentDefinition struct {
	Name         string
	Description  string
	Capabilities []string

	// New constructs a fresh subagent for one delegation.
	New func() Subagent
}

// HasCapability reports whether the definition lists capability.
func (d SubagentDefinition) HasCapability(capability string) bool {
	return slices.Contains(d.Capabilities, capability)
}

// SubagentRegistry maps unique names to subagent definitions.
//
// # Thread Safety
//
// SubagentRegistry is NOT thread-safe. Register every definition before execution
// starts; during execution it is read-only.
type SubagentRegistry struct {
	defs map[string]SubagentDefinition
}

// NewSubagentRegistry creates a registry populated with defs.
func NewSubagentRegistry(defs ...SubagentDefinition) (*SubagentRegistry, error) {
	r := &SubagentRegistry{defs: make(map[string]SubagentDefinition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. Names must be non-empty and unique, and New must be set.
func (r *SubagentRegistry) Register(def SubagentDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("register subagent: name must not be empty")
	}
	if def.New == nil {
		return fmt.Errorf("register subagent %q: constructor must not be nil", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSubagent, def.Name)
	}
	def.Capabilities = slices.Clone(def.Capabilities)
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition registered under name.
func (r *SubagentRegistry) Get(name string) (SubagentDefinition, error) {
	if r != nil {
		if d, ok := r.defs[name]; ok {
			return d, nil
		}
	}
	return SubagentDefinition{}, fmt.Errorf("%w: %q", ErrSubagentNotFound, name)
}

// Has reports whether name is registered.
func (r *SubagentRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.defs[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *SubagentRegistry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithCapability returns the names of definitions that list capability, sorted.
func (r *SubagentRegistry) WithCapability(capability string) []string {
	var out []string
	for _, n := range r.Names() {
		if r.defs[n].HasCapability(capability) {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of registered definitions.
func (r *SubagentRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}
