package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/pipekit/logger"
)

func TestNewEvent_Fields(t *testing.T) {
	ev := NewEvent("pipeline_started", "pipeline_id", "p1", "run_id", "r1")
	if ev.Name != "pipeline_started" {
		t.Fatalf("unexpected name %q", ev.Name)
	}
	if ev.Fields["pipeline_id"] != "p1" || ev.Fields["run_id"] != "r1" {
		t.Fatalf("unexpected fields %v", ev.Fields)
	}
	if ev.Time.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestLogSink_FailureEventsWarn(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Log: logger.NewWithWriter(&logger.Config{Level: "info", Format: "json"}, "", &buf)}

	sink.Emit(context.Background(), NewEvent("pipeline_node_failed", "node_id", "read"))
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected warn level, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"event":"pipeline_node_failed"`) {
		t.Errorf("expected event field, got %s", buf.String())
	}

	buf.Reset()
	sink.Emit(context.Background(), NewEvent("pipeline_completed"))
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("expected info level, got %s", buf.String())
	}
}

func TestSpanSink_AddsEvent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	ctx, span := tp.Tracer("test").Start(context.Background(), "run")

	SpanSink{}.Emit(ctx, NewEvent("pipeline_node_started", "node_id", "detect"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "pipeline_node_started" {
		t.Fatalf("expected span event, got %+v", spans[0].Events)
	}
}

func TestMultiSink_RecorderOrder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sink := MultiSink{a, b, NopSink}
	sink.Emit(context.Background(), NewEvent("stream_connect"))
	sink.Emit(context.Background(), NewEvent("stream_disconnect"))

	for _, r := range []*Recorder{a, b} {
		names := r.Names()
		if len(names) != 2 || names[0] != "stream_connect" || names[1] != "stream_disconnect" {
			t.Fatalf("unexpected names %v", names)
		}
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	m.RecordPipelineRun(ctx, "p", "completed", time.Millisecond)
	m.RecordNode(ctx, "p", "n", "completed")
	m.RecordSandbox(ctx, "yolo", "", time.Millisecond)
	m.RecordFrame(ctx, "p", "dropped")
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPipelineRun(context.Background(), "p", "failed", time.Second)
	m.RecordSandbox(context.Background(), "p", "TimeoutError", time.Second)
	m.SessionOpened(context.Background())
}

func TestServiceHealth_DegradedDoesNotOverrideDown(t *testing.T) {
	sh := NewServiceHealth("pipekit", "dev")
	sh.AddComponent(Health{Name: "a", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "b", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Fatalf("expected down, got %s", sh.Status)
	}
	if sh.HTTPStatus() != 503 {
		t.Fatalf("expected 503, got %d", sh.HTTPStatus())
	}
	if len(sh.Unhealthy) != 2 || sh.Unhealthy[0] != "a" || sh.Unhealthy[1] != "b" {
		t.Fatalf("unexpected unhealthy list %v", sh.Unhealthy)
	}
}

func TestServiceHealth_DegradedIsStillServing(t *testing.T) {
	sh := NewServiceHealth("pipekit", "dev")
	sh.AddComponent(Health{Name: "http-server", Status: HealthStatusUp})
	sh.AddComponent(Health{Name: "plugins", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDegraded || sh.HTTPStatus() != 200 {
		t.Fatalf("expected degraded/200, got %s/%d", sh.Status, sh.HTTPStatus())
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint == "" || cfg.SampleRate != 1.0 || cfg.Interval == 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "pipekit", "dev", "development", Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestEmit_MergesContextFields(t *testing.T) {
	ctx := WithEventFields(context.Background(), "run_id", "r1", "pipeline_id", "p1")
	ctx = WithEventFields(ctx, "node_id", "read")

	rec := &Recorder{}
	Emit(ctx, rec, "node_started", "node_id", "override")

	ev := rec.Events()[0]
	if ev.Fields["run_id"] != "r1" || ev.Fields["pipeline_id"] != "p1" {
		t.Fatalf("context fields missing: %v", ev.Fields)
	}
	if ev.Fields["node_id"] != "override" {
		t.Fatalf("explicit fields must win, got %v", ev.Fields["node_id"])
	}
	if len(EventFields(context.Background())) != 0 {
		t.Fatal("plain context must carry no fields")
	}
}
