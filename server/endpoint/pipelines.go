package endpoint

import (
	"context"
	"errors"
	"io"
	"maps"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pipekit/dag"
	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/server"
	"github.com/kbukum/pipekit/stream"
)

// PipelineStore is the read side of the pipeline registry.
type PipelineStore interface {
	List() []dag.Summary
	Get(id string) (*dag.Pipeline, bool)
	Info(id string) (dag.Info, bool)
}

// PipelineRunner validates and executes pipelines.
type PipelineRunner interface {
	Validate(p *dag.Pipeline) dag.ValidationResult
	Execute(ctx context.Context, pipelineID string, payload map[string]any) (*dag.Run, error)
}

// RunResponse is the body of a successful run.
type RunResponse struct {
	RunID      string         `json:"run_id"`
	PipelineID string         `json:"pipeline_id"`
	Order      []string       `json:"order"`
	Outputs    map[string]any `json:"outputs"`
	Context    map[string]any `json:"context"`
	DurationMs float64        `json:"duration_ms"`
}

// Pipelines serves pipeline listing, validation and execution.
type Pipelines struct {
	store  PipelineStore
	runner PipelineRunner
	frames stream.FrameValidator
}

// NewPipelines creates the handler. frames checks uploads on the single
// frame route.
func NewPipelines(store PipelineStore, runner PipelineRunner, frames stream.FrameValidator) *Pipelines {
	return &Pipelines{store: store, runner: runner, frames: frames}
}

// Register adds the pipeline routes to r.
func (h *Pipelines) Register(r gin.IRouter) {
	g := r.Group("/pipelines")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/info", h.info)
	g.POST("/:id/validate", h.validate)
	g.POST("/:id/run", h.run)
	g.POST("/:id/frames", h.frame)
}

func (h *Pipelines) list(c *gin.Context) {
	server.RespondOK(c, h.store.List())
}

func (h *Pipelines) get(c *gin.Context) {
	p, ok := h.store.Get(c.Param("id"))
	if !ok {
		server.RespondWithError(c, apperrors.PipelineNotFound(c.Param("id")))
		return
	}
	server.RespondOK(c, p.Definition())
}

func (h *Pipelines) info(c *gin.Context) {
	info, ok := h.store.Info(c.Param("id"))
	if !ok {
		server.RespondWithError(c, apperrors.PipelineNotFound(c.Param("id")))
		return
	}
	server.RespondOK(c, info)
}

// validate re-checks a registered pipeline against the current plugin
// catalog. An invalid graph is still a 200; the verdict is in the body.
func (h *Pipelines) validate(c *gin.Context) {
	p, ok := h.store.Get(c.Param("id"))
	if !ok {
		server.RespondWithError(c, apperrors.PipelineNotFound(c.Param("id")))
		return
	}
	server.RespondOK(c, h.runner.Validate(p))
}

// run executes a pipeline with the JSON object body as its payload. An
// empty body runs with an empty payload.
func (h *Pipelines) run(c *gin.Context) {
	payload := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			server.RespondWithError(c, apperrors.InvalidInput("body", "must be a JSON object"))
			return
		}
	}
	h.execute(c, payload)
}

// frame runs a pipeline on one JPEG frame posted as the raw body, the
// request/response counterpart of a stream session.
func (h *Pipelines) frame(c *gin.Context) {
	if mt, _, _ := mime.ParseMediaType(c.ContentType()); mt != "image/jpeg" && mt != "application/octet-stream" {
		server.RespondWithError(c, apperrors.New(apperrors.ErrCodeInvalidMessage,
			"frames must be sent as image/jpeg or application/octet-stream", http.StatusUnsupportedMediaType))
		return
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			server.RespondWithError(c, (&stream.FrameError{Code: stream.CodeFrameTooLarge, Detail: "request body too large"}).AppError())
			return
		}
		server.RespondWithError(c, apperrors.InvalidInput("body", "could not read frame"))
		return
	}
	if ferr := h.frames.Validate(data); ferr != nil {
		server.RespondWithError(c, ferr)
		return
	}
	h.execute(c, map[string]any{stream.PayloadFrame: data, stream.PayloadFrameIndex: 1})
}

func (h *Pipelines) execute(c *gin.Context, payload map[string]any) {
	run, err := h.runner.Execute(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	ctx := maps.Clone(run.Context)
	delete(ctx, stream.PayloadFrame)
	server.RespondOK(c, RunResponse{
		RunID:      run.ID,
		PipelineID: run.PipelineID,
		Order:      run.Order,
		Outputs:    run.Outputs(),
		Context:    ctx,
		DurationMs: run.DurationMs(),
	})
}
