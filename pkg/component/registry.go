package component

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/harun/restx/pkg/errdefs"
)

// Registry holds component descriptors by name. Writers are serialized and a
// descriptor is only published once it is fully built.
type Registry struct {
	components map[string]*Descriptor
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]*Descriptor),
	}
}

// Register builds and publishes c. A component with the same name is
// replaced.
func (r *Registry) Register(c Component) (*Descriptor, error) {
	return r.RegisterMetadata(c.Metadata())
}

// RegisterMetadata builds and publishes a component from its metadata.
func (r *Registry) RegisterMetadata(meta Metadata) (*Descriptor, error) {
	d, err := Build(meta)
	if err != nil {
		log.Error().Str("component", meta.Name).Err(err).Msg("Component registration failed")
		return nil, err
	}

	r.mu.Lock()
	_, replaced := r.components[d.Name]
	r.components[d.Name] = d
	r.mu.Unlock()

	log.Info().
		Str("component", d.Name).
		Int("services", d.Services.Len()).
		Bool("replaced", replaced).
		Msg("Component registered")

	return d, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.components[name]
	if !ok {
		return nil, errdefs.NotFound("component %q not found", name)
	}
	return d, nil
}

// Unregister removes a component. Descriptors already handed out stay valid.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[name]; !ok {
		return errdefs.NotFound("component %q not found", name)
	}
	delete(r.components, name)

	log.Info().Str("component", name).Msg("Component unregistered")
	return nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	out := make([]*Descriptor, 0, len(r.components))
	for _, d := range r.components {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered components.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.components)
}
