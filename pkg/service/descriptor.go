package service

import (
	"encoding/json"

	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
)

// Descriptor is the published contract of one service.
type Descriptor struct {
	Description      string
	URI              string
	Methods          []string
	ParametersInBody bool
	// OutputTypes is nil when unrestricted.
	OutputTypes []string
	// InputTypes is nil when any input is accepted and empty when none is.
	InputTypes []string
	Parameters *ordered.Map[*parameter.Definition]
	Positional []string
}

// AllowsMethod reports whether the service accepts method. Services that do
// not restrict methods leave the decision to their handler.
func (d *Descriptor) AllowsMethod(method string) bool {
	if len(d.Methods) == 0 {
		return true
	}
	for _, m := range d.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// AcceptsNoInput reports whether the service forbids a request body.
func (d *Descriptor) AcceptsNoInput() bool {
	return d.InputTypes != nil && len(d.InputTypes) == 0
}

// ProducesNoOutput reports whether the service forbids a response body.
func (d *Descriptor) ProducesNoOutput() bool {
	return d.OutputTypes != nil && len(d.OutputTypes) == 0
}

// WithURI returns a copy of d that reports uri.
func (d *Descriptor) WithURI(uri string) *Descriptor {
	c := *d
	c.URI = uri
	return &c
}

type wireDescriptor struct {
	Description      string                              `json:"description"`
	URI              string                              `json:"uri,omitempty"`
	Methods          []string                            `json:"methods,omitempty"`
	ParametersInBody bool                                `json:"parameters_in_body,omitempty"`
	InputTypes       *[]string                           `json:"input_types,omitempty"`
	OutputTypes      *[]string                           `json:"output_types,omitempty"`
	Parameters       *ordered.Map[*parameter.Definition] `json:"parameters"`
	Positional       []string                            `json:"positional,omitempty"`
}

// MarshalJSON encodes the descriptor. Unset media type lists are omitted and
// explicitly empty ones are written as [].
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	w := wireDescriptor{
		Description:      d.Description,
		URI:              d.URI,
		Methods:          d.Methods,
		ParametersInBody: d.ParametersInBody,
		Parameters:       d.Parameters,
		Positional:       d.Positional,
	}
	if d.InputTypes != nil {
		w.InputTypes = &d.InputTypes
	}
	if d.OutputTypes != nil {
		w.OutputTypes = &d.OutputTypes
	}
	if w.Parameters == nil {
		w.Parameters = ordered.New[*parameter.Definition]()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Descriptor{
		Description:      w.Description,
		URI:              w.URI,
		Methods:          w.Methods,
		ParametersInBody: w.ParametersInBody,
		Parameters:       w.Parameters,
		Positional:       w.Positional,
	}
	if w.InputTypes != nil {
		d.InputTypes = *w.InputTypes
		if d.InputTypes == nil {
			d.InputTypes = []string{}
		}
	}
	if w.OutputTypes != nil {
		d.OutputTypes = *w.OutputTypes
		if d.OutputTypes == nil {
			d.OutputTypes = []string{}
		}
	}
	if d.Parameters == nil {
		d.Parameters = ordered.New[*parameter.Definition]()
	}
	return nil
}
