package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToNested prepares the context of a resource access made from
// inside a running service. The trace ID is kept and a new request ID is
// issued for the nested call.
func PropagateToNested(ctx context.Context, resource, service string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	nested := WithTraceID(ctx, traceID)
	nested = WithRequestID(nested, NewRequestID())
	return WithTarget(nested, resource, service)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.RequestID != "" {
		lc = lc.Str("request_id", tc.RequestID)
	}
	if tc.Resource != "" {
		lc = lc.Str("resource", tc.Resource)
	}
	if tc.Service != "" {
		lc = lc.Str("service", tc.Service)
	}
	return lc.Logger()
}
