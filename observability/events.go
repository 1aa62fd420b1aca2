package observability

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pipekit/logger"
)

// Event is one structured lifecycle event.
type Event struct {
	Name   string
	Time   time.Time
	Fields map[string]any
}

// NewEvent builds an Event from alternating key-value pairs.
func NewEvent(name string, kvs ...any) Event {
	return Event{Name: name, Time: time.Now(), Fields: logger.Fields(kvs...)}
}

// Sink receives lifecycle events. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// NopSink discards events.
var NopSink Sink = SinkFunc(func(context.Context, Event) {})

// LogSink writes events to a logger. Names ending in _failed or _error log
// at warn level.
type LogSink struct {
	Log *logger.Logger
}

// Emit writes ev as a structured log line.
func (s LogSink) Emit(_ context.Context, ev Event) {
	fields := make(map[string]interface{}, len(ev.Fields)+1)
	for k, v := range ev.Fields {
		fields[k] = v
	}
	fields[logger.FieldEvent] = ev.Name

	if isFailure(ev.Name) {
		s.Log.Warn(ev.Name, fields)
		return
	}
	s.Log.Info(ev.Name, fields)
}

func isFailure(name string) bool {
	for _, suffix := range []string{"_failed", "_error"} {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

// SpanSink attaches events to the span active in ctx.
type SpanSink struct{}

// Emit adds ev as a span event.
func (SpanSink) Emit(ctx context.Context, ev Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(ev.Fields))
	for k, v := range ev.Fields {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
	}
	span.AddEvent(ev.Name, trace.WithAttributes(attrs...), trace.WithTimestamp(ev.Time))
}

// MultiSink fans events out to every sink in order.
type MultiSink []Sink

// Emit forwards ev to each sink.
func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends ev.
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

type eventFieldsKey struct{}

// WithEventFields returns a context whose events carry fields in addition
// to their own. Fields already in ctx are kept unless overwritten.
func WithEventFields(ctx context.Context, kvs ...any) context.Context {
	merged := make(map[string]any)
	for k, v := range EventFields(ctx) {
		merged[k] = v
	}
	for k, v := range logger.Fields(kvs...) {
		merged[k] = v
	}
	return context.WithValue(ctx, eventFieldsKey{}, merged)
}

// EventFields returns the fields attached with WithEventFields.
func EventFields(ctx context.Context) map[string]any {
	fields, _ := ctx.Value(eventFieldsKey{}).(map[string]any)
	return fields
}

// Emit sends a named event to sink, adding the fields attached to ctx.
// Explicit key-value pairs take precedence over context fields.
func Emit(ctx context.Context, sink Sink, name string, kvs ...any) {
	ev := NewEvent(name, kvs...)
	for k, v := range EventFields(ctx) {
		if _, set := ev.Fields[k]; !set {
			ev.Fields[k] = v
		}
	}
	sink.Emit(ctx, ev)
}
