package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/restx/internal/tracing"
	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// requestSchema restricts a creation request to its two known sections.
const requestSchema = `{
	"type": "object",
	"properties": {
		"params": {"type": "object"},
		"resource_creation_params": {"type": "object"}
	},
	"additionalProperties": false
}`

// CreateRequest is the body of a resource creation call. Component
// parameters are looked up in Params first and then in
// ResourceCreationParams; built-in ones the other way round.
type CreateRequest struct {
	ResourceCreationParams map[string]any `json:"resource_creation_params,omitempty"`
	Params                 map[string]any `json:"params,omitempty"`
}

// Created is the response to a successful creation.
type Created struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	URI    string `json:"uri"`
}

// Config holds resource manager configuration
type Config struct {
	Registry *component.Registry
	Store    Store
	Logger   zerolog.Logger
}

// Manager creates and resolves resources against the component registry.
type Manager struct {
	registry *component.Registry
	store    Store
	schema   *gojsonschema.Schema
	logger   zerolog.Logger
}

// NewManager creates a new resource manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("component registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("resource store is required")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(requestSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile request schema: %w", err)
	}

	return &Manager{
		registry: cfg.Registry,
		store:    cfg.Store,
		schema:   schema,
		logger:   cfg.Logger,
	}, nil
}

// DecodeRequest validates and decodes a creation request body. An empty
// body is an empty request.
func (m *Manager) DecodeRequest(body []byte) (*CreateRequest, error) {
	req := &CreateRequest{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return req, nil
	}

	result, err := m.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errdefs.Validation("malformed request body: %v", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errdefs.Validation("invalid request body: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, req); err != nil {
		return nil, errdefs.Validation("malformed request body: %v", err)
	}
	return req, nil
}

// Create makes a resource (or, with the built-in specialized flag, a
// specialized component) from the named component.
func (m *Manager) Create(ctx context.Context, componentName string, req *CreateRequest) (*Created, error) {
	ctx, span := tracing.StartSpan(ctx, "resource.create", attribute.String("component", componentName))
	created, err := m.create(ctx, componentName, req, nil)
	tracing.EndSpan(span, err)
	return created, err
}

// CreateFromSpecialized makes a resource from a specialized component. The
// preset values are fixed; supplying one of them is a validation error.
func (m *Manager) CreateFromSpecialized(ctx context.Context, name string, req *CreateRequest) (*Created, error) {
	ctx, span := tracing.StartSpan(ctx, "resource.create_specialized", attribute.String("specialized", name))

	spec, err := m.store.Load(ctx, KindSpecialized, name)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	created, err := m.create(ctx, spec.Component, req, spec)
	tracing.EndSpan(span, err)
	return created, err
}

func (m *Manager) create(ctx context.Context, componentName string, req *CreateRequest, base *Resource) (*Created, error) {
	if req == nil {
		req = &CreateRequest{}
	}

	desc, err := m.registry.Lookup(componentName)
	if err != nil {
		return nil, err
	}

	builtin := func(name string) any {
		if v, ok := req.ResourceCreationParams[name]; ok {
			return v
		}
		return req.Params[name]
	}
	supplied := func(name string) any {
		if v, ok := req.Params[name]; ok {
			return v
		}
		return req.ResourceCreationParams[name]
	}

	specialized, err := coerceBuiltin(desc, component.ParamSpecialized, builtin)
	if err != nil {
		return nil, err
	}
	suggested, err := coerceBuiltin(desc, component.ParamSuggestedName, builtin)
	if err != nil {
		return nil, err
	}
	description, err := coerceBuiltin(desc, component.ParamDescription, builtin)
	if err != nil {
		return nil, err
	}

	kind := KindResource
	if specialized.(bool) {
		if base != nil {
			return nil, errdefs.Validation("a specialized component can not be specialized again")
		}
		kind = KindSpecialized
	}

	params := make(map[string]any)
	var missing []string

	for _, name := range desc.CreationParameters.Keys() {
		if component.IsBuiltin(name) {
			continue
		}
		def, _ := desc.CreationParameters.Get(name)
		raw := supplied(name)

		if base != nil {
			if preset, ok := base.Params[name]; ok {
				if raw != nil {
					return nil, errdefs.Validation("parameter %q is preset by specialized component %q", name, base.Name)
				}
				raw = preset
			}
		}

		if raw == nil && kind == KindSpecialized {
			continue
		}

		v, err := def.Coerce(raw)
		if err != nil {
			if errdefs.KindOf(err) == errdefs.KindMissingParameter {
				missing = append(missing, name)
				continue
			}
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[name] = v
	}

	if len(missing) > 0 {
		return nil, errdefs.MissingParameter("missing parameters: %s", strings.Join(missing, ", "))
	}

	name := suggested.(string)
	if name == "" {
		id, err := gonanoid.Generate(nameAlphabet, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to generate resource name: %w", err)
		}
		name = strings.ToLower(componentName) + "-" + id
	}
	if strings.ContainsAny(name, "/?#") {
		return nil, errdefs.Validation("resource name %q contains reserved characters", name)
	}

	text := description.(string)
	if text == "" {
		if base != nil {
			text = base.Description
		} else {
			text = fmt.Sprintf("A %q %s", componentName, kind)
		}
	}

	r := &Resource{
		Name:        name,
		Kind:        kind,
		Component:   componentName,
		Description: text,
		Params:      params,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.Save(ctx, r); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("component", componentName).
		Str("name", name).
		Str("kind", string(kind)).
		Msg("Resource created")

	return &Created{Status: "created", Name: name, URI: r.URI()}, nil
}

func coerceBuiltin(desc *component.Descriptor, name string, lookup func(string) any) (any, error) {
	def, _ := desc.CreationParameters.Get(name)
	v, err := def.Coerce(lookup(name))
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}
	return v, nil
}

// Get resolves a resource and the component it was created from. Stored
// parameters are coerced again so they come back in their native types.
func (m *Manager) Get(ctx context.Context, name string) (*Resource, *component.Descriptor, error) {
	return m.get(ctx, KindResource, name)
}

// GetSpecialized resolves a specialized component.
func (m *Manager) GetSpecialized(ctx context.Context, name string) (*Resource, *component.Descriptor, error) {
	return m.get(ctx, KindSpecialized, name)
}

func (m *Manager) get(ctx context.Context, kind Kind, name string) (*Resource, *component.Descriptor, error) {
	r, err := m.store.Load(ctx, kind, name)
	if err != nil {
		return nil, nil, err
	}
	desc, err := m.registry.Lookup(r.Component)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %q: %w", kind, name, err)
	}
	if err := restore(r, desc); err != nil {
		return nil, nil, err
	}
	return r, desc, nil
}

// restore coerces the stored values back to their native types. It builds a
// new Params map and never writes to the one it was given.
func restore(r *Resource, desc *component.Descriptor) error {
	params := make(map[string]any, len(r.Params))
	for name, raw := range r.Params {
		def, ok := desc.CreationParameters.Get(name)
		if !ok {
			params[name] = raw
			continue
		}
		v, err := def.Coerce(raw)
		if err != nil {
			return fmt.Errorf("stored parameter %q of %q: %w", name, r.Name, err)
		}
		params[name] = v
	}
	r.Params = params
	return nil
}

// List returns the resources of a kind.
func (m *Manager) List(ctx context.Context, kind Kind) ([]*Resource, error) {
	return m.store.List(ctx, kind)
}

// Summaries maps resource names to their listing form.
func (m *Manager) Summaries(ctx context.Context, kind Kind) (map[string]component.Summary, error) {
	list, err := m.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]component.Summary, len(list))
	for _, r := range list {
		out[r.Name] = r.Summary()
	}
	return out, nil
}

// Delete removes a resource or specialized component.
func (m *Manager) Delete(ctx context.Context, kind Kind, name string) error {
	if err := m.store.Delete(ctx, kind, name); err != nil {
		return err
	}
	m.logger.Info().Str("name", name).Str("kind", string(kind)).Msg("Resource deleted")
	return nil
}

// Names returns resource names sorted alphabetically.
func (m *Manager) Names(ctx context.Context, kind Kind) ([]string, error) {
	list, err := m.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, r := range list {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of stored resources of kind; errors count as zero.
func (m *Manager) Count(ctx context.Context, kind Kind) int {
	list, err := m.store.List(ctx, kind)
	if err != nil {
		return 0
	}
	return len(list)
}
