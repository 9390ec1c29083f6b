package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/restx/internal/tracing"
)

// Audit event types
const (
	AuditTypeResource    = "resource"
	AuditTypeSpecialized = "specialized"
	AuditTypeConfig      = "config"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"` // client address
	Action    string         `json:"action"`          // e.g. "create", "delete", "reload"
	Target    string         `json:"target,omitempty"`
	Status    string         `json:"status"` // "success", "failure"
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// AuditLogger writes one JSON line per state-changing operation. A nil
// *AuditLogger discards events.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   io.Closer
}

// NewAuditLogger writes audit events to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// OpenAuditLog appends audit events to the file at path
func OpenAuditLog(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	a := NewAuditLogger(file)
	a.file = file
	return a, nil
}

// Record emits an audit event and adds it to the current span, if any
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if a == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = tracing.GetRequestID(ctx)
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent("audit."+event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.target", event.Target),
			attribute.String("audit.status", event.Status),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", event.Type).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.Target != "" {
		entry.Str("target", event.Target)
	}
	if event.Actor != "" {
		entry.Str("actor", event.Actor)
	}
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.RequestID != "" {
		entry.Str("request_id", event.RequestID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit log file
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// RecordChange records the outcome of creating or deleting a resource or
// specialized component.
func (a *AuditLogger) RecordChange(ctx context.Context, eventType, action, target, actor string, metadata map[string]any, err error) {
	event := AuditEvent{
		Type:     eventType,
		Actor:    actor,
		Action:   action,
		Target:   target,
		Status:   "success",
		Metadata: metadata,
	}
	if err != nil {
		event.Status = "failure"
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}
		event.Metadata["error"] = err.Error()
	}
	a.Record(ctx, event)
}

// RecordConfig records a configuration change
func (a *AuditLogger) RecordConfig(ctx context.Context, action string, metadata map[string]any) {
	a.Record(ctx, AuditEvent{
		Type:     AuditTypeConfig,
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}
