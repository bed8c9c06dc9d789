package model

import (
	"fmt"
	"sort"
)

// Registry is the immutable lookup table of model definitions. It is
// constructed once at startup and passed by handle to every component;
// there is no mutation path after NewRegistry returns.
type Registry struct {
	models map[string]*Definition
	names  []string
}

// NewRegistry builds a registry from the given definitions, appending the
// built-in ApiKey and ApiMetric models unless the user declared them.
// Every definition is validated; a duplicate name or malformed definition
// fails construction.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{
		models: make(map[string]*Definition, len(defs)+2),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, NewConfigurationError("", "model definition missing name")
		}
		if _, exists := r.models[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, def.Name)
		}
		r.models[def.Name] = def
	}

	for _, builtin := range BuiltinDefinitions() {
		if _, exists := r.models[builtin.Name]; !exists {
			r.models[builtin.Name] = builtin
		}
	}

	for _, def := range r.models {
		if err := ValidateDefinition(def, r); err != nil {
			return nil, err
		}
	}

	r.names = make([]string, 0, len(r.models))
	for name := range r.models {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r, nil
}

// Get retrieves a definition by name
func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.models[name]
	return def, ok
}

// Exists reports whether a model is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.models[name]
	return ok
}

// Names returns all model names in stable sorted order
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns all definitions in stable name order
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.models[name])
	}
	return out
}

// Count returns the number of registered models
func (r *Registry) Count() int {
	return len(r.models)
}
