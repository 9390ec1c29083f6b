// Package resource creates, stores and describes resources: named instances
// of a component with their creation parameters bound.
package resource

import (
	"context"
	"time"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// Kind separates resources from specialized components, which share a store
// but live in different namespaces.
type Kind string

const (
	KindResource    Kind = "resource"
	KindSpecialized Kind = "specialized"
)

// Resource is a stored resource or specialized component. For a specialized
// component Params only holds the preset values.
type Resource struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Component   string         `json:"component"`
	Description string         `json:"desc"`
	Params      map[string]any `json:"params"`
	CreatedAt   time.Time      `json:"created_at"`
}

// URI is where the resource is published.
func (r *Resource) URI() string {
	if r.Kind == KindSpecialized {
		return "/component/specialized/" + r.Name
	}
	return "/resource/" + r.Name
}

// Clone copies r so that the copy's Params can be changed without touching r.
func (r *Resource) Clone() *Resource {
	c := *r
	if r.Params != nil {
		c.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			c.Params[k] = cloneValue(v)
		}
	}
	return &c
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...)
	case []float64:
		return append([]float64(nil), vv...)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func (r *Resource) Summary() component.Summary {
	return component.Summary{URI: r.URI(), Description: r.Description}
}

// Info is the view of the resource handed to service handlers.
func (r *Resource) Info() service.ResourceInfo {
	params := make(map[string]any, len(r.Params))
	for k, v := range r.Params {
		params[k] = v
	}
	return service.ResourceInfo{
		Name:        r.Name,
		Description: r.Description,
		Component:   r.Component,
		Params:      params,
	}
}

// Store persists resources.
type Store interface {
	// Save stores a new resource; an existing name of the same kind is a
	// conflict.
	Save(ctx context.Context, r *Resource) error
	Load(ctx context.Context, kind Kind, name string) (*Resource, error)
	Delete(ctx context.Context, kind Kind, name string) error
	// List returns the resources of a kind sorted by name.
	List(ctx context.Context, kind Kind) ([]*Resource, error)
	Close() error
}

// Descriptor is the published form of a resource: its component's services
// addressed through the resource.
type Descriptor struct {
	Name          string                            `json:"name"`
	Description   string                            `json:"description"`
	Documentation string                            `json:"documentation"`
	URI           string                            `json:"uri"`
	Component     string                            `json:"component"`
	Services      *ordered.Map[*service.Descriptor] `json:"services"`
}

// Describe builds the descriptor of r from its component.
func Describe(r *Resource, c *component.Descriptor) *Descriptor {
	services := ordered.New[*service.Descriptor]()
	c.Services.Range(func(name string, d *service.Descriptor) bool {
		services.Set(name, d.WithURI(r.URI()+"/"+name))
		return true
	})
	return &Descriptor{
		Name:          r.Name,
		Description:   r.Description,
		Documentation: c.Documentation,
		URI:           r.URI(),
		Component:     c.Name,
		Services:      services,
	}
}

// SpecializedDescriptor is the published form of a specialized component.
// Preset parameters are not listed because callers can not set them.
type SpecializedDescriptor struct {
	Name                   string                              `json:"name"`
	Description            string                              `json:"description"`
	Documentation          string                              `json:"documentation"`
	URI                    string                              `json:"uri"`
	Component              string                              `json:"component"`
	Preset                 []string                            `json:"preset"`
	ResourceCreationParams *ordered.Map[*parameter.Definition] `json:"resource_creation_params"`
	Services               *ordered.Map[*service.Descriptor]   `json:"services"`
}

// DescribeSpecialized builds the descriptor of a specialized component.
func DescribeSpecialized(r *Resource, c *component.Descriptor) *SpecializedDescriptor {
	params := ordered.New[*parameter.Definition]()
	preset := []string{}
	c.CreationParameters.Range(func(name string, d *parameter.Definition) bool {
		if _, ok := r.Params[name]; ok {
			preset = append(preset, name)
		} else if name != component.ParamSpecialized {
			params.Set(name, d)
		}
		return true
	})
	return &SpecializedDescriptor{
		Name:                   r.Name,
		Description:            r.Description,
		Documentation:          c.Documentation,
		URI:                    r.URI(),
		Component:              c.Name,
		Preset:                 preset,
		ResourceCreationParams: params,
		Services:               c.Services,
	}
}
