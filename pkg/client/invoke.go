package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// InvokeOptions shapes a service call. Positional values become path
// segments, Params the query string. Input is sent as the body: strings
// and byte slices as they are, anything else as JSON.
type InvokeOptions struct {
	Method      string
	Positional  []string
	Params      url.Values
	Input       any
	ContentType string
	Accept      string
}

// Invoke calls a service of a resource. Error statuses are returned as
// *Error.
func (c *Client) Invoke(ctx context.Context, resource, service string, opts InvokeOptions) (*Response, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	path := "/resource/" + url.PathEscape(resource) + "/" + url.PathEscape(service)
	for _, p := range opts.Positional {
		path += "/" + url.PathEscape(p)
	}
	if len(opts.Params) > 0 {
		path += "?" + opts.Params.Encode()
	}

	var body []byte
	contentType := opts.ContentType
	switch in := opts.Input.(type) {
	case nil:
	case string:
		body = []byte(in)
		if contentType == "" {
			contentType = "text/plain"
		}
	case []byte:
		body = in
	default:
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		body = data
		if contentType == "" {
			contentType = "application/json"
		}
	}

	resp, err := c.do(ctx, method, path, body, contentType, opts.Accept)
	if err != nil {
		return nil, err
	}
	if err := check(resp); err != nil {
		return resp, err
	}
	return resp, nil
}
