package service

import (
	"context"
	"net/http"

	"github.com/harun/restx/pkg/parameter"
)

// Handler implements a service. It returns a plain value, a *Result, or an
// error. Returning errdefs.MethodNotAllowed(call.Method) rejects the method.
type Handler func(ctx context.Context, call *Call) (any, error)

// Call carries everything a handler may use. Handlers get no other ambient
// state.
type Call struct {
	Method string
	// Input is the decoded request body, or nil.
	Input any
	// Args holds the coerced parameters in declaration order.
	Args   []any
	Params map[string]any

	Resource ResourceInfo
	Host     Host
}

// ResourceInfo describes the resource a service runs on.
type ResourceInfo struct {
	Name        string
	Description string
	Component   string
	Params      map[string]any
}

// Host exposes the capabilities a handler is allowed to use.
type Host interface {
	// AccessResource invokes a service of another resource in-process.
	AccessResource(ctx context.Context, req AccessRequest) (*Result, error)
	// HTTPClient returns the client handlers use for outbound calls.
	HTTPClient() *http.Client
}

// AccessRequest addresses a service call made through Host.
type AccessRequest struct {
	Resource   string
	Service    string
	Method     string
	Positional []string
	Params     map[string]any
	Input      any
}

// Arg returns the i-th argument or nil.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// String returns a string or password parameter.
func (c *Call) String(name string) string {
	switch v := c.Params[name].(type) {
	case string:
		return v
	case parameter.Password:
		return v.Reveal()
	}
	return ""
}

func (c *Call) Bool(name string) bool {
	b, _ := c.Params[name].(bool)
	return b
}

func (c *Call) Number(name string) float64 {
	f, _ := c.Params[name].(float64)
	return f
}

func (c *Call) Strings(name string) []string {
	s, _ := c.Params[name].([]string)
	return s
}

func (c *Call) Numbers(name string) []float64 {
	n, _ := c.Params[name].([]float64)
	return n
}

// ResourceParam returns a creation parameter of the resource.
func (c *Call) ResourceParam(name string) any {
	return c.Resource.Params[name]
}

// Result lets a handler choose the status and headers of its response.
type Result struct {
	Status  int
	Body    any
	Headers map[string]string
}

func OK(body any) *Result {
	return &Result{Status: http.StatusOK, Body: body}
}

// Created reports a new entity at location.
func Created(location string, body any) *Result {
	return &Result{
		Status:  http.StatusCreated,
		Body:    body,
		Headers: map[string]string{"Location": location},
	}
}

func NoContent() *Result {
	return &Result{Status: http.StatusNoContent}
}

// Status builds a result with an arbitrary status.
func Status(code int, body any) *Result {
	return &Result{Status: code, Body: body}
}
