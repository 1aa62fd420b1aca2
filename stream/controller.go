package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pipekit/dag"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
)

// WebSocket message types, matching RFC 6455 opcodes.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Payload keys set on each frame's pipeline input.
const (
	PayloadFrame      = "frame"
	PayloadFrameIndex = "frame_index"
)

// Stream lifecycle events.
const (
	EventConnect       = "stream_connect"
	EventDisconnect    = "stream_disconnect"
	EventPipelineError = "stream_pipeline_error"
)

// Conn is one client connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Runner executes a pipeline. *dag.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, pipelineID string, payload map[string]any) (map[string]any, error)
}

// Pipelines looks up registered pipelines. *dag.Registry satisfies it.
type Pipelines interface {
	Get(id string) (*dag.Pipeline, bool)
}

// Controller serves streaming sessions.
type Controller struct {
	cfg       Config
	validator FrameValidator
	pipelines Pipelines
	runner    Runner
	events    observability.Sink
	metrics   *observability.Metrics
	log       *logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithEvents sets the lifecycle event sink.
func WithEvents(sink observability.Sink) Option {
	return func(c *Controller) { c.events = sink }
}

// WithMetrics records frame and session metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController creates a controller.
func NewController(cfg Config, pipelines Pipelines, runner Runner, opts ...Option) *Controller {
	cfg.ApplyDefaults()
	c := &Controller{
		cfg:       cfg,
		validator: NewFrameValidator(cfg),
		pipelines: pipelines,
		runner:    runner,
		events:    observability.NopSink,
		log:       logger.WithComponent("stream.controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validator returns the frame validator.
func (c *Controller) Validator() FrameValidator { return c.validator }

// Serve runs one session until the client disconnects, ctx is done, or an
// unrecoverable error has been reported to the client. conn is always
// closed on return.
func (c *Controller) Serve(ctx context.Context, conn Conn, pipelineID string) {
	defer conn.Close()
	// Unblock ReadMessage when the server shuts down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if pipelineID == "" {
		c.reject(conn, CodeInvalidPipeline, "pipeline_id is required")
		return
	}
	if _, ok := c.pipelines.Get(pipelineID); !ok {
		c.reject(conn, CodeInvalidPipeline, fmt.Sprintf("unknown pipeline %q", pipelineID))
		return
	}

	session := NewSession(pipelineID, c.cfg)
	ctx = observability.WithEventFields(ctx,
		logger.FieldSessionID, session.ID,
		logger.FieldPipelineID, pipelineID,
	)
	c.emit(ctx, EventConnect)
	c.metrics.SessionOpened(ctx)
	defer func() {
		c.metrics.SessionClosed(ctx)
		c.emit(ctx, EventDisconnect, "frames", session.FrameIndex, "dropped_frames", session.DroppedFrames)
	}()

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.handle(ctx, conn, session, msgType, data) {
			return
		}
	}
}

// handle processes one message. It returns false when the session must end.
func (c *Controller) handle(ctx context.Context, conn Conn, s *Session, msgType int, data []byte) (keepOpen bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic while handling frame", logger.Fields(
				logger.FieldSessionID, s.ID, logger.FieldFrameIndex, s.FrameIndex, logger.FieldError, fmt.Sprint(r)))
			c.reject(conn, CodeInternalError, "internal error")
			keepOpen = false
		}
	}()

	if msgType != BinaryMessage {
		c.reject(conn, CodeInvalidMessage, "expected a binary frame")
		return false
	}
	if ferr := c.validator.Validate(data); ferr != nil {
		c.metrics.RecordFrame(ctx, s.PipelineID, "rejected")
		c.reject(conn, ferr.Code, ferr.Detail)
		return false
	}

	idx := s.NextFrame()
	ctx, span := observability.StartSpan(ctx, observability.SpanStreamFrame, trace.WithAttributes(
		attribute.String("stream.session_id", s.ID),
		attribute.Int("stream.frame_index", idx),
	))
	defer span.End()

	start := time.Now()
	out, err := c.runner.Run(ctx, s.PipelineID, map[string]any{
		PayloadFrame:      data,
		PayloadFrameIndex: idx,
	})
	elapsed := time.Since(start)
	s.MarkProcessed(time.Now())

	if err != nil {
		observability.SetSpanError(ctx, err)
		c.emit(ctx, EventPipelineError, logger.FieldFrameIndex, idx, logger.FieldError, err.Error())
		c.metrics.RecordFrame(ctx, s.PipelineID, "failed")
		c.reject(conn, CodePipelineFailure, failureDetail(err))
		return false
	}

	var msg any
	if s.ShouldDropFrame(float64(elapsed) / float64(time.Millisecond)) {
		s.MarkDropped()
		c.metrics.RecordFrame(ctx, s.PipelineID, "dropped")
		msg = FrameDropped{FrameIndex: idx, Dropped: true}
	} else {
		c.metrics.RecordFrame(ctx, s.PipelineID, "processed")
		msg = FrameResult{FrameIndex: idx, Result: stripInput(out)}
	}
	if err := conn.WriteJSON(msg); err != nil {
		return false
	}

	if s.ShouldSlowDown() {
		if err := conn.WriteJSON(WarningMessage{Warning: WarningSlowDown}); err != nil {
			return false
		}
	}
	return true
}

func (c *Controller) reject(conn Conn, code, detail string) {
	if err := conn.WriteJSON(ErrorMessage{Error: code, Detail: detail}); err != nil {
		c.log.Debug("failed to send stream error", logger.Fields("code", code, logger.FieldError, err.Error()))
	}
}

func (c *Controller) emit(ctx context.Context, name string, kvs ...any) {
	observability.Emit(ctx, c.events, name, kvs...)
}

// failureDetail is a short client-facing description of a run failure.
func failureDetail(err error) string {
	var nerr *dag.NodeError
	if errors.As(err, &nerr) {
		return fmt.Sprintf("node %s failed with %s", nerr.NodeID, nerr.Type)
	}
	detail, _, _ := strings.Cut(err.Error(), "\n")
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// stripInput removes the raw frame from the context sent back to the client.
func stripInput(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k == PayloadFrame || k == PayloadFrameIndex {
			continue
		}
		out[k] = v
	}
	return out
}
