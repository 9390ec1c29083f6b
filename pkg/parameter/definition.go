package parameter

import (
	"encoding/json"
	"fmt"

	"github.com/harun/restx/pkg/errdefs"
)

// Definition describes one parameter. A parameter is required exactly when
// it has no default.
type Definition struct {
	Type        Type
	Description string
	Required    bool
	Default     any
	Choices     []any
}

// Define builds a definition. The default and every choice are converted to
// the native type up front, and a default must be one of the choices.
func Define(t Type, description string, defaultValue any, choices []any) (*Definition, error) {
	if !t.Valid() {
		return nil, errdefs.UnsupportedType("unsupported parameter type %q", string(t))
	}

	d := &Definition{
		Type:        t,
		Description: description,
		Required:    defaultValue == nil,
	}

	for _, c := range choices {
		v, err := toNative(t.Element(), c)
		if err != nil {
			return nil, errdefs.Validation("invalid choice %v for %s parameter: %v", c, t, err)
		}
		d.Choices = append(d.Choices, v)
	}

	if defaultValue != nil {
		v, err := toNative(t, defaultValue)
		if err != nil {
			return nil, errdefs.Validation("invalid default for %s parameter: %v", t, err)
		}
		if err := d.checkChoices(v); err != nil {
			return nil, errdefs.Validation("default is not an allowed choice: %v", err)
		}
		d.Default = v
	}

	return d, nil
}

// MustDefine is Define for static tables; it panics on error.
func MustDefine(t Type, description string, defaultValue any, choices ...any) *Definition {
	d, err := Define(t, description, defaultValue, choices)
	if err != nil {
		panic(err)
	}
	return d
}

type wireDefinition struct {
	Type     Type   `json:"type"`
	Desc     string `json:"desc"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
	Choices  []any  `json:"choices,omitempty"`
}

// MarshalJSON encodes the definition in its wire shape.
func (d *Definition) MarshalJSON() ([]byte, error) {
	w := wireDefinition{
		Type:     d.Type,
		Desc:     d.Description,
		Required: d.Required,
		Default:  d.Default,
		Choices:  d.Choices,
	}
	if p, ok := d.Default.(Password); ok {
		w.Default = p.Reveal()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape and re-validates it.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var w wireDefinition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := ParseType(string(w.Type))
	if err != nil {
		return err
	}
	parsed, err := Define(t, w.Desc, w.Default, w.Choices)
	if err != nil {
		return fmt.Errorf("invalid parameter definition: %w", err)
	}
	*d = *parsed
	return nil
}

// JSONSchema describes the native form of the parameter as a JSON schema
// fragment.
func (d *Definition) JSONSchema() map[string]any {
	schema := map[string]any{
		"description": d.Description,
	}

	elem := map[string]any{"type": jsonSchemaType(d.Type.Element())}
	if len(d.Choices) > 0 {
		elem["enum"] = d.Choices
	}

	if d.Type.IsList() {
		schema["type"] = "array"
		schema["items"] = elem
	} else {
		for k, v := range elem {
			schema[k] = v
		}
	}

	if d.Default != nil {
		if p, ok := d.Default.(Password); ok {
			schema["default"] = p.Reveal()
		} else {
			schema["default"] = d.Default
		}
	}
	return schema
}

func jsonSchemaType(t Type) string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	default:
		return "string"
	}
}
