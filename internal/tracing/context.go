package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the id of one HTTP request or
	// in-process resource access
	RequestIDKey ContextKey = "request_id"
	// ResourceKey is the context key for the resource being invoked
	ResourceKey ContextKey = "resource"
	// ServiceKey is the context key for the service being invoked
	ServiceKey ContextKey = "service"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	Resource  string
	Service   string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithTarget records the resource and service a request addresses.
func WithTarget(ctx context.Context, resource, service string) context.Context {
	ctx = context.WithValue(ctx, ResourceKey, resource)
	return context.WithValue(ctx, ServiceKey, service)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func GetResource(ctx context.Context) string {
	return stringValue(ctx, ResourceKey)
}

func GetService(ctx context.Context) string {
	return stringValue(ctx, ServiceKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		Resource:  GetResource(ctx),
		Service:   GetService(ctx),
	}
}

// NewRequestContext starts tracing for an incoming request. An existing
// request id (for example from an X-Request-ID header) is kept.
func NewRequestContext(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = NewRequestID()
	}
	ctx = WithRequestID(ctx, requestID)
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return ctx
}
