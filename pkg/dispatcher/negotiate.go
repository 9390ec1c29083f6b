package dispatcher

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"github.com/munnerz/goautoneg"

	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/service"
)

const (
	MediaJSON = "application/json"
	MediaText = "text/plain"
	MediaForm = "application/x-www-form-urlencoded"
	MediaAny  = "*/*"
)

// DefaultOutputTypes apply to services that do not restrict their output.
var DefaultOutputTypes = []string{MediaJSON, MediaText}

// suffixTypes lets a service name ending in a known extension force the
// output type.
var suffixTypes = map[string]string{
	".json": MediaJSON,
	".txt":  MediaText,
}

// splitSuffix strips a known extension from a service name.
func splitSuffix(name string) (string, string) {
	for ext, mt := range suffixTypes {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return strings.TrimSuffix(name, ext), mt
		}
	}
	return name, ""
}

// negotiate picks the output type of a response. Services declaring no
// output types produce no body and need no type.
func negotiate(d *service.Descriptor, accept, forced string) (string, error) {
	if d.ProducesNoOutput() {
		return "", nil
	}
	candidates := d.OutputTypes
	if candidates == nil {
		candidates = DefaultOutputTypes
	}

	if forced != "" {
		for _, c := range candidates {
			if c == forced || c == MediaAny {
				return forced, nil
			}
		}
		return "", errdefs.NotAcceptable("output type %s is not offered; available: %s", forced, strings.Join(candidates, ", "))
	}

	accept = strings.TrimSpace(accept)
	if accept == "" || accept == MediaAny {
		return concrete(candidates[0], ""), nil
	}

	chosen := goautoneg.Negotiate(accept, candidates)
	if chosen == "" {
		return "", errdefs.NotAcceptable("none of %s is acceptable", strings.Join(candidates, ", "))
	}
	return concrete(chosen, accept), nil
}

// concrete replaces a wildcard output type with the client's most preferred
// concrete type, falling back to JSON.
func concrete(mt, accept string) string {
	if !strings.Contains(mt, "*") {
		return mt
	}
	for _, a := range goautoneg.ParseAccept(accept) {
		if a.Type != "*" && a.SubType != "*" && a.Q > 0 {
			return a.Type + "/" + a.SubType
		}
	}
	return MediaJSON
}

// decodeInput checks the request body against the service's input types
// and decodes JSON and form bodies.
func decodeInput(d *service.Descriptor, body []byte, contentType string) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if d.AcceptsNoInput() {
		return nil, errdefs.UnsupportedMediaType("service accepts no input")
	}

	mt := MediaText
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, errdefs.UnsupportedMediaType("invalid content type %q", contentType)
		}
		mt = parsed
	}

	if d.InputTypes != nil && !matchesAny(mt, d.InputTypes) {
		return nil, errdefs.UnsupportedMediaType("content type %s is not accepted; accepted: %s", mt, strings.Join(d.InputTypes, ", "))
	}

	switch mt {
	case MediaJSON:
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, errdefs.Validation("malformed JSON body: %v", err)
		}
		return v, nil
	case MediaForm:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, errdefs.Validation("malformed form body: %v", err)
		}
		form := make(map[string]any, len(values))
		for k, vs := range values {
			form[k] = flatten(vs)
		}
		return form, nil
	default:
		return string(body), nil
	}
}

func matchesAny(mt string, allowed []string) bool {
	major, _, _ := strings.Cut(mt, "/")
	for _, a := range allowed {
		switch {
		case a == mt, a == MediaAny:
			return true
		case strings.HasSuffix(a, "/*") && strings.TrimSuffix(a, "/*") == major:
			return true
		}
	}
	return false
}

// flatten turns a single query or form value into a string and several
// into a list.
func flatten(vs []string) any {
	if len(vs) == 1 {
		return vs[0]
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}
