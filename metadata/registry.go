package metadata

import (
	"fmt"
	"sync"
)

// Registry holds the entity types of one metadata model
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
	names []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*EntityType),
	}
}

// Register adds an entity type to the registry
func (r *Registry) Register(t *EntityType) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("entity type %s already registered", t.Name)
	}

	r.types[t.Name] = t
	r.names = append(r.names, t.Name)
	return nil
}

// Get retrieves a registered entity type
func (r *Registry) Get(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.types[name]
	if !exists {
		return nil, fmt.Errorf("entity type %s not registered", name)
	}

	return t, nil
}

// Models returns the registered entity type names in registration order
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}
