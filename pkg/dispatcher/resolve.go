package dispatcher

import (
	"fmt"
	"strings"

	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/service"
)

// resolve binds every declared parameter, in declaration order, from the
// first source that has it: its positional path segment, the query string,
// typed in-process params, then body params. Unbound parameters fall back
// to their default. Nothing is coerced partially: the first invalid value
// or the complete list of missing ones fails the call.
func resolve(b *service.Binding, req *Request, bodyParams map[string]any) ([]any, map[string]any, error) {
	desc := b.Descriptor

	segments := make([]string, 0, len(req.Positional))
	for _, s := range req.Positional {
		if s != "" {
			segments = append(segments, s)
		}
	}
	position := make(map[string]int, len(desc.Positional))
	for i, name := range desc.Positional {
		position[name] = i
	}

	args := make([]any, 0, len(b.ParamNames))
	params := make(map[string]any, len(b.ParamNames))
	var missing []string

	for _, name := range b.ParamNames {
		def, _ := desc.Parameters.Get(name)

		var raw any
		if i, ok := position[name]; ok && i < len(segments) {
			raw = segments[i]
		} else if vs, ok := req.Query[name]; ok && len(vs) > 0 {
			raw = flatten(vs)
		} else if v, ok := req.Params[name]; ok {
			raw = v
		} else if v, ok := bodyParams[name]; ok {
			raw = v
		}

		v, err := def.Coerce(raw)
		if err != nil {
			if errdefs.KindOf(err) == errdefs.KindMissingParameter {
				missing = append(missing, name)
				continue
			}
			return nil, nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		args = append(args, v)
		params[name] = v
	}

	if len(missing) > 0 {
		return nil, nil, errdefs.MissingParameter("missing parameters: %s", strings.Join(missing, ", "))
	}
	return args, params, nil
}
