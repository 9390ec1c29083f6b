// Package service turns the service declarations of a component into
// descriptors and handler bindings.
package service

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
)

// ParameterSpec declares one service parameter.
type ParameterSpec struct {
	Name        string
	Type        parameter.Type
	Description string
	Default     any
	Choices     []any
	Positional  bool
}

// Spec is the declaration of a single service as written by a component
// author. Setting both the singular and plural form of a media type field is
// an error. A nil plural form is unset; an empty non-nil one allows nothing.
type Spec struct {
	Name             string
	Description      string
	Methods          []string
	ParametersInBody bool
	OutputType       string
	OutputTypes      []string
	InputType        string
	InputTypes       []string
	Parameters       []ParameterSpec
	Handler          Handler
}

// Binding ties a built descriptor to its handler. ParamNames and ParamTypes
// run parallel in declaration order; arguments are passed in this order.
type Binding struct {
	Name       string
	Descriptor *Descriptor
	Handler    Handler
	ParamNames []string
	ParamTypes []reflect.Type
}

// Build validates a service declaration and produces its binding.
func Build(spec Spec) (*Binding, error) {
	if spec.Name == "" {
		return nil, errdefs.Validation("service name is required")
	}
	if strings.ContainsAny(spec.Name, "/?#") {
		return nil, errdefs.Validation("service name %q contains reserved characters", spec.Name)
	}
	if spec.Description == "" {
		return nil, errdefs.Validation("service %q has no description", spec.Name)
	}
	if spec.Handler == nil {
		return nil, errdefs.Validation("service %q has no handler", spec.Name)
	}

	outputs, err := mediaTypes(spec.OutputType, spec.OutputTypes)
	if err != nil {
		return nil, fmt.Errorf("service %q output types: %w", spec.Name, err)
	}
	inputs, err := mediaTypes(spec.InputType, spec.InputTypes)
	if err != nil {
		return nil, fmt.Errorf("service %q input types: %w", spec.Name, err)
	}

	methods, err := normalizeMethods(spec.Methods)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", spec.Name, err)
	}

	desc := &Descriptor{
		Description:      spec.Description,
		Methods:          methods,
		ParametersInBody: spec.ParametersInBody,
		OutputTypes:      outputs,
		InputTypes:       inputs,
		Parameters:       ordered.New[*parameter.Definition](),
	}
	b := &Binding{
		Name:       spec.Name,
		Descriptor: desc,
		Handler:    spec.Handler,
	}

	for _, p := range spec.Parameters {
		if p.Name == "" {
			return nil, errdefs.Validation("service %q has a parameter without a name", spec.Name)
		}
		if desc.Parameters.Has(p.Name) {
			return nil, errdefs.Validation("service %q declares parameter %q twice", spec.Name, p.Name)
		}

		def, err := parameter.Define(p.Type, p.Description, p.Default, p.Choices)
		if err != nil {
			return nil, fmt.Errorf("service %q parameter %q: %w", spec.Name, p.Name, err)
		}

		desc.Parameters.Set(p.Name, def)
		b.ParamNames = append(b.ParamNames, p.Name)
		b.ParamTypes = append(b.ParamTypes, p.Type.NativeType())
		if p.Positional {
			desc.Positional = append(desc.Positional, p.Name)
		}
	}

	return b, nil
}

// mediaTypes collapses the singular and plural forms into one sequence
// while keeping unset (nil) distinct from explicitly empty.
func mediaTypes(single string, list []string) ([]string, error) {
	if single != "" && list != nil {
		return nil, errdefs.Validation("both singular and plural forms are set")
	}
	if single != "" {
		return mediaTypes("", []string{single})
	}
	if list == nil {
		return nil, nil
	}
	out := make([]string, len(list))
	for i, mt := range list {
		if !strings.Contains(mt, "/") {
			return nil, errdefs.Validation("%q is not a media type", mt)
		}
		out[i] = strings.ToLower(strings.TrimSpace(mt))
	}
	return out, nil
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

func normalizeMethods(methods []string) ([]string, error) {
	if len(methods) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !knownMethods[m] {
			return nil, errdefs.Validation("unsupported method %q", m)
		}
		out = append(out, m)
	}
	return out, nil
}
