package llm

import (
	"fmt"
	"sort"

	"GhibliScanner/internal/ports"
)

// Registry keeps a mapping from backend names to their implementations.
type Registry struct {
	models map[string]ports.VisionModel
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: map[string]ports.VisionModel{}}
}

// Register adds or replaces a backend implementation.
func (r *Registry) Register(model ports.VisionModel) {
	if r.models == nil {
		r.models = map[string]ports.VisionModel{}
	}
	r.models[model.Name()] = model
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.VisionModel, error) {
	if model, ok := r.models[name]; ok {
		return model, nil
	}
	return nil, fmt.Errorf("vision backend %s is not registered (have %v)", name, r.Names())
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
