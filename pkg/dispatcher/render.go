package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Render encodes a response body for its content type. JSON types are
// encoded as JSON. Other types write strings and byte slices verbatim and
// fall back to JSON for structured values, except text/plain, which
// formats scalars as text.
func Render(resp *Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}

	ct := resp.ContentType
	if ct == "" || ct == MediaJSON || strings.HasSuffix(ct, "+json") {
		return json.Marshal(resp.Body)
	}

	switch b := resp.Body.(type) {
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	case ErrorBody:
		return json.Marshal(b)
	}

	if ct == MediaText {
		switch resp.Body.(type) {
		case map[string]any, []any:
		default:
			return []byte(fmt.Sprint(resp.Body)), nil
		}
	}
	return json.Marshal(resp.Body)
}

// RenderedType is the content type actually written for resp.
func RenderedType(resp *Response) string {
	if _, ok := resp.Body.(ErrorBody); ok {
		return MediaJSON
	}
	if resp.ContentType == "" {
		return MediaJSON
	}
	return resp.ContentType
}
