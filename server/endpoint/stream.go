package endpoint

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/server/middleware"
	"github.com/kbukum/pipekit/stream"
)

// Stream upgrades GET /v1/stream?pipeline_id=... to a WebSocket and hands
// the connection to the stream controller.
type Stream struct {
	base       context.Context
	controller *stream.Controller
	upgrader   websocket.Upgrader
	readLimit  int64
	log        *logger.Logger
}

// NewStream creates the handler. Sessions end when base is cancelled.
// Messages beyond twice the frame ceiling close the connection without
// being read; smaller oversize frames get a frame_too_large reply.
func NewStream(base context.Context, controller *stream.Controller, cors middleware.CORSConfig) *Stream {
	maxFrame := int64(controller.Validator().MaxBytes)
	return &Stream{
		base:       base,
		controller: controller,
		readLimit:  2*maxFrame + 1024,
		log:        logger.WithComponent("endpoint.stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.AllowsOrigin(origin)
			},
		},
	}
}

func (h *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pipelineID := r.URL.Query().Get("pipeline_id")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", logger.ErrorFields("upgrade", err))
		return
	}
	conn.SetReadLimit(h.readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	h.controller.Serve(ctx, conn, pipelineID)
}
