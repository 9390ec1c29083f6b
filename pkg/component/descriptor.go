// Package component assembles component descriptors from their declared
// metadata and keeps them in a registry keyed by name.
package component

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// Names of the creation parameters every component accepts.
const (
	ParamSuggestedName = "suggested_name"
	ParamDescription   = "desc"
	ParamSpecialized   = "specialized"
)

// ReservedName can not be used as a component name; it addresses the
// specialized component listing.
const ReservedName = "specialized"

// Component is implemented by every component type. Metadata returns the
// component's static service table.
type Component interface {
	Metadata() Metadata
}

// Metadata is what a component author declares. Services without a
// description are not exposed.
type Metadata struct {
	Name          string
	Description   string
	Documentation string
	Parameters    []service.ParameterSpec
	Services      []service.Spec
}

// Descriptor is the immutable, published form of a component.
type Descriptor struct {
	Name               string
	Description        string
	Documentation      string
	CreationParameters *ordered.Map[*parameter.Definition]
	Services           *ordered.Map[*service.Descriptor]

	bindings map[string]*service.Binding
}

// Build turns metadata into a descriptor. Any invalid parameter or service
// fails the whole component.
func Build(meta Metadata) (*Descriptor, error) {
	if err := validateName(meta.Name); err != nil {
		return nil, err
	}

	d := &Descriptor{
		Name:               meta.Name,
		Description:        meta.Description,
		Documentation:      meta.Documentation,
		CreationParameters: builtinParameters(),
		Services:           ordered.New[*service.Descriptor](),
		bindings:           make(map[string]*service.Binding),
	}

	for _, p := range meta.Parameters {
		if p.Name == "" {
			return nil, errdefs.Validation("component %q has a creation parameter without a name", meta.Name)
		}
		if d.CreationParameters.Has(p.Name) {
			return nil, errdefs.Validation("component %q declares creation parameter %q twice or shadows a built-in", meta.Name, p.Name)
		}
		def, err := parameter.Define(p.Type, p.Description, p.Default, p.Choices)
		if err != nil {
			return nil, fmt.Errorf("component %q creation parameter %q: %w", meta.Name, p.Name, err)
		}
		d.CreationParameters.Set(p.Name, def)
	}

	for _, spec := range meta.Services {
		if spec.Description == "" {
			log.Debug().Str("component", meta.Name).Str("service", spec.Name).Msg("Skipping undescribed function")
			continue
		}
		if d.Services.Has(spec.Name) {
			return nil, errdefs.Validation("component %q declares service %q twice", meta.Name, spec.Name)
		}
		b, err := service.Build(spec)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", meta.Name, err)
		}
		d.Services.Set(b.Name, b.Descriptor)
		d.bindings[b.Name] = b
	}

	return d, nil
}

func validateName(name string) error {
	if name == "" {
		return errdefs.Validation("component name is required")
	}
	if name == ReservedName {
		return errdefs.Validation("component name %q is reserved", name)
	}
	if strings.ContainsAny(name, "/?#") {
		return errdefs.Validation("component name %q contains reserved characters", name)
	}
	return nil
}

func builtinParameters() *ordered.Map[*parameter.Definition] {
	m := ordered.New[*parameter.Definition]()
	m.Set(ParamSuggestedName, parameter.MustDefine(parameter.TypeString, "Name for the new resource; generated when empty", ""))
	m.Set(ParamDescription, parameter.MustDefine(parameter.TypeString, "Description of the new resource", ""))
	m.Set(ParamSpecialized, parameter.MustDefine(parameter.TypeBoolean, "Store a specialized component instead of a resource", false))
	return m
}

// IsBuiltin reports whether name is a creation parameter every component has.
func IsBuiltin(name string) bool {
	return name == ParamSuggestedName || name == ParamDescription || name == ParamSpecialized
}

// Binding returns the handler binding of a service.
func (d *Descriptor) Binding(name string) (*service.Binding, error) {
	b, ok := d.bindings[name]
	if !ok {
		return nil, errdefs.NotFound("component %q has no service %q", d.Name, name)
	}
	return b, nil
}

// URI is where the component is published.
func (d *Descriptor) URI() string {
	return "/component/" + d.Name
}

// Summary is the short listing form of a component or resource.
type Summary struct {
	URI         string `json:"uri" yaml:"uri"`
	Description string `json:"desc" yaml:"desc"`
}

func (d *Descriptor) Summary() Summary {
	return Summary{URI: d.URI(), Description: d.Description}
}

// CreationSchema returns a JSON schema describing the native form of the
// creation parameters.
func (d *Descriptor) CreationSchema() map[string]any {
	properties := make(map[string]any)
	required := []string{}
	d.CreationParameters.Range(func(name string, def *parameter.Definition) bool {
		properties[name] = def.JSONSchema()
		if def.Required {
			required = append(required, name)
		}
		return true
	})
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      d.Name,
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

type wireDescriptor struct {
	Name               string                              `json:"name"`
	Description        string                              `json:"description"`
	Documentation      string                              `json:"documentation"`
	URI                string                              `json:"uri"`
	CreationParameters *ordered.Map[*parameter.Definition] `json:"resource_creation_params"`
	Services           *ordered.Map[*service.Descriptor]   `json:"services"`
}

func (d *Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDescriptor{
		Name:               d.Name,
		Description:        d.Description,
		Documentation:      d.Documentation,
		URI:                d.URI(),
		CreationParameters: d.CreationParameters,
		Services:           d.Services,
	})
}
