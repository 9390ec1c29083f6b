// Package client talks to a RESTx server: it discovers components, creates
// resources from templates and invokes their services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/harun/restx/pkg/component"
	"github.com/harun/restx/pkg/errdefs"
	"github.com/harun/restx/pkg/ordered"
	"github.com/harun/restx/pkg/parameter"
	"github.com/harun/restx/pkg/service"
)

// Error is a failed request as reported by the server.
type Error struct {
	URL     string `json:"url"`
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Status, e.Message)
}

// Unwrap maps the status back to the error taxonomy so callers can use
// errors.Is(err, errdefs.ErrNotFound).
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return errdefs.ErrValidation
	case http.StatusNotFound:
		return errdefs.ErrNotFound
	case http.StatusMethodNotAllowed:
		return errdefs.ErrMethodNotAllowed
	case http.StatusNotAcceptable:
		return errdefs.ErrNotAcceptable
	case http.StatusConflict:
		return errdefs.ErrConflict
	case http.StatusUnsupportedMediaType:
		return errdefs.ErrUnsupportedMediaType
	}
	if e.Status >= 500 {
		return errdefs.ErrHandler
	}
	return nil
}

// Component is a component or specialized component as published by the
// server. Preset and Base are only set for specialized components.
type Component struct {
	Name               string                              `json:"name"`
	Description        string                              `json:"description"`
	Documentation      string                              `json:"documentation"`
	URI                string                              `json:"uri"`
	Base               string                              `json:"component,omitempty"`
	Preset             []string                            `json:"preset,omitempty"`
	CreationParameters *ordered.Map[*parameter.Definition] `json:"resource_creation_params"`
	Services           *ordered.Map[*service.Descriptor]   `json:"services"`
}

// Resource is a resource as published by the server.
type Resource struct {
	Name          string                            `json:"name"`
	Description   string                            `json:"description"`
	Documentation string                            `json:"documentation"`
	URI           string                            `json:"uri"`
	Component     string                            `json:"component"`
	Services      *ordered.Map[*service.Descriptor] `json:"services"`
}

// Created is the answer to a successful resource creation.
type Created struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	URI    string `json:"uri"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ServerInfo returns the server's self description.
func (c *Client) ServerInfo(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	return info, c.getJSON(ctx, "/", &info)
}

// Components maps component names to their summaries.
func (c *Client) Components(ctx context.Context) (map[string]component.Summary, error) {
	var out map[string]component.Summary
	return out, c.getJSON(ctx, "/component", &out)
}

// ComponentNames returns the component names sorted alphabetically.
func (c *Client) ComponentNames(ctx context.Context) ([]string, error) {
	list, err := c.Components(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(list), nil
}

// Component fetches the full descriptor of a component.
func (c *Client) Component(ctx context.Context, name string) (*Component, error) {
	var out Component
	if err := c.getJSON(ctx, "/component/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Specialized maps specialized component names to their summaries.
func (c *Client) Specialized(ctx context.Context) (map[string]component.Summary, error) {
	var out map[string]component.Summary
	return out, c.getJSON(ctx, "/component/specialized", &out)
}

// SpecializedComponent fetches a specialized component. Its creation
// parameters exclude the preset ones.
func (c *Client) SpecializedComponent(ctx context.Context, name string) (*Component, error) {
	var out Component
	if err := c.getJSON(ctx, "/component/specialized/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resources maps resource names to their summaries.
func (c *Client) Resources(ctx context.Context) (map[string]component.Summary, error) {
	var out map[string]component.Summary
	return out, c.getJSON(ctx, "/resource", &out)
}

// ResourceNames returns the resource names sorted alphabetically.
func (c *Client) ResourceNames(ctx context.Context) ([]string, error) {
	list, err := c.Resources(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(list), nil
}

// Resource fetches the descriptor of a resource.
func (c *Client) Resource(ctx context.Context, name string) (*Resource, error) {
	var out Resource
	if err := c.getJSON(ctx, "/resource/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteResource removes a resource.
func (c *Client) DeleteResource(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/resource/"+url.PathEscape(name), nil, "", "")
	if err != nil {
		return err
	}
	return check(resp)
}

// DeleteSpecialized removes a specialized component.
func (c *Client) DeleteSpecialized(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/component/specialized/"+url.PathEscape(name), nil, "", "")
	if err != nil {
		return err
	}
	return check(resp)
}

func sortedKeys(m map[string]component.Summary) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Response is the raw outcome of a service invocation.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

// Decode decodes a JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "", "application/json")
	if err != nil {
		return err
	}
	if err := check(resp); err != nil {
		return err
	}
	if err := resp.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, data, "application/json", "application/json")
	if err != nil {
		return err
	}
	if err := check(resp); err != nil {
		return err
	}
	return resp.Decode(v)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType, accept string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        data,
	}, nil
}

// check turns error statuses into *Error, decoding the server's error
// payload when there is one.
func check(resp *Response) error {
	if resp.Status < 400 {
		return nil
	}
	e := &Error{Status: resp.Status}
	if err := json.Unmarshal(resp.Body, e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(resp.Body))
		if e.Message == "" {
			e.Message = http.StatusText(resp.Status)
		}
	}
	return e
}
