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

// Filter reads another resource in-process and keeps the top-level
// elements matching its filter expressions.
type Filter struct{}

func (Filter) Metadata() component.Metadata {
	return component.Metadata{
		Name:        "Filter",
		Description: "Filters the output of another resource",
		Documentation: `A Filter resource reads a list or map from another resource and passes
only the top-level elements that match its filter expressions.

A filter expression is a search path, an operator and a value:

    bar/2/elem1 = Other
    price >= 10
    "First Name" != "Bob"

Path steps are separated by '/'. Numeric steps index lists or address
numeric map keys; quoted steps are always map keys. Operators are
= != < <= > >=. Unquoted numbers and true/false compare as numbers and
booleans, everything else as text. Elements whose path can not be
followed or whose value has another type do not match.`,
		Parameters: []service.ParameterSpec{
			{Name: "input_resource_uri", Type: parameter.TypeString, Description: "Service to read, as /resource/<name>/<service>[/positional...]"},
			{Name: "filter_expression_1", Type: parameter.TypeString, Description: "Filter expression"},
			{Name: "filter_expression_2", Type: parameter.TypeString, Description: "Filter expression", Default: ""},
			{Name: "filter_expression_3", Type: parameter.TypeString, Description: "Filter expression", Default: ""},
			{Name: "match_all", Type: parameter.TypeBoolean, Description: "Require all expressions to match instead of any", Default: true},
		},
		Services: []service.Spec{
			{
				Name:        "filter",
				Description: "Returns the filtered result",
				Methods:     []string{http.MethodGet},
				OutputType:  "application/json",
				Parameters: []service.ParameterSpec{
					{Name: "negate", Type: parameter.TypeBoolean, Description: "Reverse the filter", Default: false},
				},
				Handler: filterData,
			},
		},
	}
}

// parseResourceURI splits /resource/<name>/<service>/<positional...>.
func parseResourceURI(uri string) (service.AccessRequest, error) {
	trimmed := strings.Trim(strings.TrimPrefix(uri, "/resource/"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return service.AccessRequest{}, errdefs.Validation("%q does not address a resource service", uri)
	}
	return service.AccessRequest{
		Resource:   parts[0],
		Service:    parts[1],
		Positional: parts[2:],
	}, nil
}

func filterData(ctx context.Context, call *service.Call) (any, error) {
	uri, _ := call.ResourceParam("input_resource_uri").(string)
	target, err := parseResourceURI(uri)
	if err != nil {
		return nil, err
	}

	var exprs []*filterExpr
	for _, name := range []string{"filter_expression_1", "filter_expression_2", "filter_expression_3"} {
		s, _ := call.ResourceParam(name).(string)
		if strings.TrimSpace(s) == "" {
			continue
		}
		f, err := compileFilter(s)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, f)
	}
	matchAll, _ := call.ResourceParam("match_all").(bool)
	negate := call.Bool("negate")

	res, err := call.Host.AccessResource(ctx, target)
	if err != nil {
		return nil, err
	}

	keep := func(elem any) bool {
		matched := matchAll
		for _, f := range exprs {
			ok := f.match(elem)
			if matchAll && !ok {
				matched = false
				break
			}
			if !matchAll && ok {
				matched = true
				break
			}
		}
		return matched != negate
	}

	switch data := res.Body.(type) {
	case []any:
		out := []any{}
		for _, elem := range data {
			if keep(elem) {
				out = append(out, elem)
			}
		}
		return out, nil
	case map[string]any:
		out := map[string]any{}
		for k, elem := range data {
			if keep(elem) {
				out[k] = elem
			}
		}
		return out, nil
	}
	return nil, errdefs.Validation("resource %q returned neither a list nor a map", target.Resource)
}
