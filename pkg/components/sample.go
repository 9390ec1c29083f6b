package components

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// Sample is a template for component authors.
type Sample struct{}

func (Sample) Metadata() component.Metadata {
	return component.Metadata{
		Name:          "Sample",
		Description:   "A template for new components",
		Documentation: "Copy this component to get started. It shows creation parameters, query parameters and method handling inside the service.",
		Parameters: []service.ParameterSpec{
			{Name: "some_parameter", Type: parameter.TypeString, Description: "A required parameter"},
			{Name: "another_parameter", Type: parameter.TypeNumber, Description: "An optional parameter", Default: 20},
		},
		Services: []service.Spec{
			{
				Name:        "some_service",
				Description: "Reports what it received",
				OutputTypes: []string{"text/plain", "text/html"},
				Parameters: []service.ParameterSpec{
					{Name: "a_num", Type: parameter.TypeNumber, Description: "A numeric parameter", Default: 20},
					{Name: "a_bool", Type: parameter.TypeBoolean, Description: "A boolean parameter", Default: true},
				},
				Handler: func(ctx context.Context, call *service.Call) (any, error) {
					switch call.Method {
					case http.MethodGet:
						return fmt.Sprintf("Received 'GET' request (a_num=%g, a_bool=%t)", call.Number("a_num"), call.Bool("a_bool")), nil
					case http.MethodPost:
						return nil, fmt.Errorf("'POST' not yet implemented")
					default:
						return nil, errdefs.MethodNotAllowed(call.Method)
					}
				},
			},
			{
				// no description, so this is not a service
				Name: "helper",
				Handler: func(ctx context.Context, call *service.Call) (any, error) {
					return nil, nil
				},
			},
		},
	}
}
