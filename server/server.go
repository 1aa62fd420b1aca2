package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/component"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/server/middleware"
)

const componentName = "http-server"

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// Server serves the Gin engine plus any handlers mounted on the root mux.
type Server struct {
	cfg    Config
	engine *gin.Engine
	mux    *http.ServeMux
	http   *http.Server
	log    *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	serveErr error
}

// New creates a server. Routes are added through Engine and Handle before
// Start.
func New(cfg Config, serviceName string) *Server {
	cfg.ApplyDefaults()
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.WithComponent("server")
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		RespondWithError(c, apperrors.NotFound("route", c.Request.URL.Path))
	})

	mux := http.NewServeMux()
	mux.Handle("/", otelhttp.NewHandler(engine, serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))

	stack := middleware.Chain(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.CORS(cfg.CORS),
		middleware.BodySizeLimit(cfg.MaxBodySize),
		middleware.RequestLogger(log),
	)
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          seconds(cfg.IdleTimeout),
	}

	return &Server{
		cfg:    cfg,
		engine: engine,
		mux:    mux,
		log:    log,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           h2c.NewHandler(stack(mux), h2s),
			ReadHeaderTimeout: seconds(cfg.ReadTimeout),
			ReadTimeout:       seconds(cfg.ReadTimeout),
			WriteTimeout:      seconds(cfg.WriteTimeout),
			IdleTimeout:       seconds(cfg.IdleTimeout),
		},
	}
}

// Engine returns the Gin engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handle mounts handler on the root mux, outside Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{Name: "HTTP Server", Type: "server", Details: s.http.Addr + " (http/1.1, h2c)"}
}

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.http.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		err := s.http.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", logger.ErrorFields("serve", err))
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()
	s.log.Info("HTTP server listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop drains in-flight requests within the shutdown timeout. Hijacked
// stream connections are closed by their sessions when ctx is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, seconds(s.cfg.ShutdownTimeout))
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Health implements component.Component.
func (s *Server) Health(_ context.Context) observability.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.serveErr != nil:
		return observability.Health{Name: componentName, Status: observability.HealthStatusDown, Message: s.serveErr.Error()}
	case s.listener == nil:
		return observability.Health{Name: componentName, Status: observability.HealthStatusDown, Message: "not started"}
	}
	return observability.Health{Name: componentName, Status: observability.HealthStatusUp}
}
