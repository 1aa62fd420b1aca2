package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/pipekit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	Interval       time.Duration
}

// InitMeter initializes the global meter provider with an OTLP HTTP exporter.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the engine's metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	pipelineRuns       metric.Int64Counter
	pipelineDuration   metric.Float64Histogram
	nodeExecutions     metric.Int64Counter
	sandboxInvocations metric.Int64Counter
	sandboxDuration    metric.Float64Histogram
	streamFrames       metric.Int64Counter
	streamSessions     metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.pipelineRuns, err = meter.Int64Counter("pipeline.runs",
		metric.WithDescription("Pipeline runs by outcome")); err != nil {
		return nil, fmt.Errorf("creating pipeline.runs counter: %w", err)
	}
	if m.pipelineDuration, err = meter.Float64Histogram("pipeline.duration",
		metric.WithDescription("Pipeline run duration"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating pipeline.duration histogram: %w", err)
	}
	if m.nodeExecutions, err = meter.Int64Counter("pipeline.node.executions",
		metric.WithDescription("Node executions by outcome")); err != nil {
		return nil, fmt.Errorf("creating pipeline.node.executions counter: %w", err)
	}
	if m.sandboxInvocations, err = meter.Int64Counter("sandbox.invocations",
		metric.WithDescription("Sandboxed tool invocations by error type")); err != nil {
		return nil, fmt.Errorf("creating sandbox.invocations counter: %w", err)
	}
	if m.sandboxDuration, err = meter.Float64Histogram("sandbox.duration",
		metric.WithDescription("Sandboxed tool invocation duration"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating sandbox.duration histogram: %w", err)
	}
	if m.streamFrames, err = meter.Int64Counter("stream.frames",
		metric.WithDescription("Streamed frames by outcome")); err != nil {
		return nil, fmt.Errorf("creating stream.frames counter: %w", err)
	}
	if m.streamSessions, err = meter.Int64UpDownCounter("stream.sessions.active",
		metric.WithDescription("Open streaming sessions")); err != nil {
		return nil, fmt.Errorf("creating stream.sessions.active counter: %w", err)
	}
	return &m, nil
}

// RecordPipelineRun records one finished pipeline run.
func (m *Metrics) RecordPipelineRun(ctx context.Context, pipelineID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("status", status),
	))
	m.pipelineDuration.Record(ctx, ms(d), metric.WithAttributes(attribute.String("pipeline.id", pipelineID)))
}

// RecordNode records one node execution.
func (m *Metrics) RecordNode(ctx context.Context, pipelineID, nodeID, status string) {
	if m == nil {
		return
	}
	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("node.id", nodeID),
		attribute.String("status", status),
	))
}

// RecordSandbox records one sandboxed invocation. errorType is empty on success.
func (m *Metrics) RecordSandbox(ctx context.Context, pluginID, errorType string, d time.Duration) {
	if m == nil {
		return
	}
	if errorType == "" {
		errorType = "none"
	}
	m.sandboxInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin.id", pluginID),
		attribute.String("error.type", errorType),
	))
	m.sandboxDuration.Record(ctx, ms(d), metric.WithAttributes(attribute.String("plugin.id", pluginID)))
}

// RecordFrame records one streamed frame. outcome is processed, dropped, or rejected.
func (m *Metrics) RecordFrame(ctx context.Context, pipelineID, outcome string) {
	if m == nil {
		return
	}
	m.streamFrames.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("outcome", outcome),
	))
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m != nil {
		m.streamSessions.Add(ctx, 1)
	}
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed(ctx context.Context) {
	if m != nil {
		m.streamSessions.Add(ctx, -1)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
