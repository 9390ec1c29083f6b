// Package components holds the components that ship with the server.
package components

import (
	"fmt"

	"github.com/harun/restx/pkg/component"
)

// All returns every built-in component.
func All() []component.Component {
	return []component.Component{
		Echo{},
		Sample{},
		Relay{},
		Filter{},
	}
}

// RegisterAll registers every built-in component with reg.
func RegisterAll(reg *component.Registry) error {
	for _, c := range All() {
		if _, err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register component %q: %w", c.Metadata().Name, err)
		}
	}
	return nil
}
