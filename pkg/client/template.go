package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
)

// Template collects creation parameters for a new resource. Values are
// checked against the component's definitions as they are set, so most
// mistakes surface before anything is sent.
type Template struct {
	client *Client
	target string
	name   string
	params *ordered.Map[*parameter.Definition]
	values map[string]any
}

// NewTemplate starts a resource from a component.
func (c *Client) NewTemplate(ctx context.Context, componentName string) (*Template, error) {
	comp, err := c.Component(ctx, componentName)
	if err != nil {
		return nil, err
	}
	return c.template(comp, "/component/"+url.PathEscape(componentName)), nil
}

// NewSpecializedTemplate starts a resource from a specialized component.
func (c *Client) NewSpecializedTemplate(ctx context.Context, name string) (*Template, error) {
	comp, err := c.SpecializedComponent(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.template(comp, "/component/specialized/"+url.PathEscape(name)), nil
}

func (c *Client) template(comp *Component, target string) *Template {
	params := comp.CreationParameters
	if params == nil {
		params = ordered.New[*parameter.Definition]()
	}
	return &Template{
		client: c,
		target: target,
		name:   comp.Name,
		params: params,
		values: make(map[string]any),
	}
}

// Parameters returns the creation parameter definitions.
func (t *Template) Parameters() *ordered.Map[*parameter.Definition] {
	return t.params
}

// Set validates and stores a creation parameter value.
func (t *Template) Set(name string, value any) error {
	def, ok := t.params.Get(name)
	if !ok {
		return errdefs.Validation("component %q has no parameter %q", t.name, name)
	}
	v, err := def.Coerce(value)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", name, err)
	}
	t.values[name] = v
	return nil
}

func (t *Template) SetSuggestedName(name string) error {
	return t.Set(component.ParamSuggestedName, name)
}

func (t *Template) SetDescription(desc string) error {
	return t.Set(component.ParamDescription, desc)
}

// SetSpecialized makes Create store a specialized component instead of a
// resource.
func (t *Template) SetSpecialized(specialized bool) error {
	return t.Set(component.ParamSpecialized, specialized)
}

// Values returns the values set so far.
func (t *Template) Values() map[string]any {
	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Missing lists required parameters that have no value yet. A specialized
// component may leave them open.
func (t *Template) Missing() []string {
	if specialized, _ := t.values[component.ParamSpecialized].(bool); specialized {
		return nil
	}
	var missing []string
	t.params.Range(func(name string, def *parameter.Definition) bool {
		if _, ok := t.values[name]; !ok && def.Required {
			missing = append(missing, name)
		}
		return true
	})
	return missing
}

// Create sends the template to the server.
func (t *Template) Create(ctx context.Context) (*Created, error) {
	if missing := t.Missing(); len(missing) > 0 {
		return nil, errdefs.MissingParameter("missing parameters: %s", strings.Join(missing, ", "))
	}

	body := map[string]any{"resource_creation_params": t.values}
	var created Created
	if err := t.client.postJSON(ctx, t.target, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
