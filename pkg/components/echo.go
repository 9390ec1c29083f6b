package components

import (
	"context"
	"net/http"
	"strings"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// Echo answers with the message it was created with.
type Echo struct{}

func (Echo) Metadata() component.Metadata {
	return component.Metadata{
		Name:          "Echo",
		Description:   "Returns a fixed message",
		Documentation: "Each Echo resource is created with a message. The say service returns it, repeat returns it several times and echo returns whatever is posted to it.",
		Parameters: []service.ParameterSpec{
			{Name: "msg", Type: parameter.TypeString, Description: "The message to return"},
		},
		Services: []service.Spec{
			{
				Name:        "say",
				Description: "Returns the message",
				Methods:     []string{http.MethodGet},
				Handler: func(ctx context.Context, call *service.Call) (any, error) {
					return call.ResourceParam("msg"), nil
				},
			},
			{
				Name:        "repeat",
				Description: "Returns the message several times",
				Methods:     []string{http.MethodGet},
				OutputTypes: []string{"text/plain", "application/json"},
				Parameters: []service.ParameterSpec{
					{Name: "times", Type: parameter.TypeNumber, Description: "How often to repeat, at most 1000", Default: 1, Positional: true},
					{Name: "sep", Type: parameter.TypeString, Description: "Separator", Default: " "},
				},
				Handler: repeat,
			},
			{
				Name:        "echo",
				Description: "Returns the request body",
				Methods:     []string{http.MethodPost, http.MethodPut},
				InputTypes:  []string{"application/json", "text/plain"},
				Handler: func(ctx context.Context, call *service.Call) (any, error) {
					return call.Input, nil
				},
			},
		},
	}
}

// MaxRepeat bounds the times parameter of the repeat service.
const MaxRepeat = 1000

func repeat(ctx context.Context, call *service.Call) (any, error) {
	times := call.Number("times")
	if !(times >= 0 && times <= MaxRepeat) {
		return nil, errdefs.Validation("times must be between 0 and %d, got %v", MaxRepeat, times)
	}
	n := int(times)
	msg, _ := call.ResourceParam("msg").(string)

	parts := make([]string, n)
	for i := range parts {
		parts[i] = msg
	}
	return strings.Join(parts, call.String("sep")), nil
}
