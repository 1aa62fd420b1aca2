package dag

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/sandbox"
)

// Plugins resolves tool metadata and tool functions. *plugin.Registry
// satisfies it.
type Plugins interface {
	plugin.Catalog
	ToolFunc(pluginID, toolID string) sandbox.ToolFunc
}

// Executor runs registered pipelines. Concurrent runs are independent:
// each owns its context map.
type Executor struct {
	registry *Registry
	plugins  Plugins
	sandbox  *sandbox.Sandbox
	events   observability.Sink
	metrics  *observability.Metrics
	log      *logger.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEvents sets the lifecycle event sink.
func WithEvents(sink observability.Sink) ExecutorOption {
	return func(e *Executor) { e.events = sink }
}

// WithMetrics records run and node metrics.
func WithMetrics(m *observability.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the executor logger.
func WithLogger(l *logger.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// NewExecutor creates an executor over a pipeline registry and plugin set.
func NewExecutor(registry *Registry, plugins Plugins, sb *sandbox.Sandbox, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		plugins:  plugins,
		sandbox:  sb,
		events:   observability.NopSink,
		log:      logger.WithComponent("dag.executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the pipeline registry.
func (e *Executor) Registry() *Registry { return e.registry }

// Validate checks p against the executor's tool catalog.
func (e *Executor) Validate(p *Pipeline) ValidationResult {
	return Validate(p, e.plugins)
}

// Run executes a pipeline and returns the merged context.
func (e *Executor) Run(ctx context.Context, pipelineID string, payload map[string]any) (map[string]any, error) {
	run, err := e.Execute(ctx, pipelineID, payload)
	if err != nil {
		return nil, err
	}
	return run.Context, nil
}

// Execute runs a pipeline and returns the full report. An unknown id
// fails with PIPELINE_NOT_FOUND; a node failure aborts the run with a
// *NodeError.
func (e *Executor) Execute(ctx context.Context, pipelineID string, payload map[string]any) (*Run, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = observability.WithEventFields(ctx, logger.FieldPipelineID, pipelineID, logger.FieldRunID, runID)

	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun, trace.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("pipeline.run_id", runID),
	))
	defer span.End()

	p, ok := e.registry.Get(pipelineID)
	if !ok {
		err := apperrors.PipelineNotFound(pipelineID)
		e.fail(ctx, pipelineID, start, err)
		return nil, err
	}
	order, err := p.TopologicalOrder()
	if err != nil {
		appErr := apperrors.PipelineInvalid(pipelineID, []string{err.Error()})
		e.fail(ctx, pipelineID, start, appErr)
		return nil, appErr
	}

	e.emit(ctx, EventPipelineStarted, "node_count", len(order))

	run := &Run{
		ID:          runID,
		PipelineID:  pipelineID,
		Order:       order,
		NodeOutputs: make(map[string]map[string]any, len(order)),
		Context:     make(map[string]any, len(payload)),
		outputNodes: p.OutputNodes(),
	}
	maps.Copy(run.Context, payload)

	for _, id := range order {
		node, _ := p.Node(id)
		out, nerr := e.runNode(ctx, runID, pipelineID, node, run.Context)
		if nerr != nil {
			e.fail(ctx, pipelineID, start, nerr)
			return nil, nerr
		}
		maps.Copy(run.Context, out)
		run.NodeOutputs[id] = out
	}

	run.Duration = time.Since(start)
	e.emit(ctx, EventPipelineCompleted, logger.FieldDuration, run.Duration.Milliseconds())
	e.metrics.RecordPipelineRun(ctx, pipelineID, "completed", run.Duration)
	return run, nil
}

// runNode invokes one node through the sandbox with a copy of the
// current context, so the tool cannot retain or mutate the run's map.
func (e *Executor) runNode(ctx context.Context, runID, pipelineID string, node Node, state map[string]any) (map[string]any, error) {
	ctx = observability.WithEventFields(ctx,
		logger.FieldNodeID, node.ID,
		logger.FieldPluginID, node.PluginID,
		logger.FieldToolID, node.ToolID,
	)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineNode, trace.WithAttributes(
		attribute.String("pipeline.node_id", node.ID),
		attribute.String("plugin.id", node.PluginID),
		attribute.String("plugin.tool_id", node.ToolID),
	))
	defer span.End()

	e.emit(ctx, EventNodeStarted)

	res := e.sandbox.Run(ctx, node.PluginID, e.plugins.ToolFunc(node.PluginID, node.ToolID), maps.Clone(state))
	if res.OK {
		out, err := toMap(res.Value)
		if err == nil {
			e.emit(ctx, EventNodeCompleted, logger.FieldDuration, res.ExecutionTime.Milliseconds())
			e.metrics.RecordNode(ctx, pipelineID, node.ID, "completed")
			return out, nil
		}
		res = sandbox.Result{ErrorType: sandbox.TypeException, Error: err.Error(), ExecutionTime: res.ExecutionTime}
	}

	nerr := &NodeError{
		PipelineID: pipelineID,
		RunID:      runID,
		NodeID:     node.ID,
		PluginID:   node.PluginID,
		ToolID:     node.ToolID,
		Type:       res.ErrorType,
		Message:    res.Error,
	}
	observability.SetSpanError(ctx, nerr)
	e.emit(ctx, EventNodeFailed,
		logger.FieldErrorType, string(res.ErrorType),
		logger.FieldError, res.Error,
		logger.FieldDuration, res.ExecutionTime.Milliseconds(),
	)
	e.metrics.RecordNode(ctx, pipelineID, node.ID, "failed")
	return nil, nerr
}

func (e *Executor) fail(ctx context.Context, pipelineID string, start time.Time, err error) {
	observability.SetSpanError(ctx, err)
	d := time.Since(start)
	e.emit(ctx, EventPipelineFailed, logger.FieldError, err.Error(), logger.FieldDuration, d.Milliseconds())
	e.metrics.RecordPipelineRun(ctx, pipelineID, "failed", d)
}

func (e *Executor) emit(ctx context.Context, name string, kvs ...any) {
	observability.Emit(ctx, e.events, name, kvs...)
}

// toMap accepts the map shapes a tool may return. A nil value is an
// empty output.
func toMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	default:
		return nil, fmt.Errorf("tool returned %T, want map[string]any", v)
	}
}
