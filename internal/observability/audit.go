package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one structured entry in the audit trail.
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // run or call ID
	Action    string                 `json:"action"`
	Status    string                 `json:"status"` // "success", "failure"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// Trail persists audit events as JSON lines. Events also land on the active
// otel span, so traces and the trail can be cross-referenced by trace ID.
type Trail struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// NewTrail builds a trail writing to w.
func NewTrail(w io.Writer) *Trail {
	return &Trail{logger: zerolog.New(w).With().Timestamp().Logger()}
}

var (
	trailMu      sync.RWMutex
	defaultTrail *Trail
)

// OpenTrail appends to the JSONL file at path and installs the trail as the
// process-wide default used by the Record helpers. Without an open trail the
// helpers only annotate the active span.
func OpenTrail(path string) (*Trail, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	t := NewTrail(file)
	t.closer = file

	trailMu.Lock()
	defaultTrail = t
	trailMu.Unlock()
	return t, nil
}

func activeTrail() *Trail {
	trailMu.RLock()
	defer trailMu.RUnlock()
	return defaultTrail
}

// annotateSpan stamps the event with the active trace ID and mirrors it as a
// span event.
func annotateSpan(ctx context.Context, event *AuditEvent) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}
	event.TraceID = span.SpanContext().TraceID().String()
	span.AddEvent(event.Action, trace.WithAttributes(
		attribute.String("audit.type", event.Type),
		attribute.String("audit.status", event.Status),
		attribute.String("audit.actor", event.Actor),
	))
}

// Record writes one event to the trail.
func (t *Trail) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	annotateSpan(ctx, &event)

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("trace_id", event.TraceID)
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}
	entry.Msg("")
}

// Close releases the trail's file handle, if it owns one.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func record(ctx context.Context, event AuditEvent) {
	if t := activeTrail(); t != nil {
		t.Record(ctx, event)
		return
	}
	annotateSpan(ctx, &event)
}

// RecordToolAudit notes one tool execution.
func RecordToolAudit(ctx context.Context, toolName, actor, status string, metadata map[string]interface{}) {
	record(ctx, AuditEvent{
		Type:     "tool",
		Actor:    actor,
		Action:   "execute:" + toolName,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordRunAudit notes one completed agent run.
func RecordRunAudit(ctx context.Context, actor, status string, metadata map[string]interface{}) {
	record(ctx, AuditEvent{
		Type:     "agent",
		Actor:    actor,
		Action:   "run",
		Status:   status,
		Metadata: metadata,
	})
}
