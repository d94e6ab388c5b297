package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps protocol discriminants to Module instances. It is lookup
// only: resolution carries no behavior of its own.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds a module to the registry.
// Returns an error if a module with the same name already exists.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("module cannot be nil")
	}
	name := m.Metadata().Name
	if name == "" {
		return fmt.Errorf("module name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module already registered: %s", name)
	}
	r.modules[name] = m
	return nil
}

// Get retrieves a module by its discriminant.
// Returns an error if no module is registered under the name.
func (r *Registry) Get(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("protocol not found: %s", name)
	}
	return m, nil
}

// List returns descriptors for all registered modules, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, ToDescriptor(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.Name < out[j].Metadata.Name
	})
	return out
}

// Unregister removes a module from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[name]; !ok {
		return fmt.Errorf("protocol not found: %s", name)
	}
	delete(r.modules, name)
	return nil
}
