package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/observability"
)

type domainError struct{}

func (domainError) Error() string { return "frame rejected" }

func (domainError) AppError() *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeInvalidFrame, "frame rejected", http.StatusBadRequest)
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"app error", apperrors.PipelineNotFound("p"), apperrors.ErrCodePipelineNotFound},
		{"wrapped app error", errors.Join(errors.New("ctx"), apperrors.Timeout("run")), apperrors.ErrCodeTimeout},
		{"domain error", domainError{}, apperrors.ErrCodeInvalidFrame},
		{"plain error", errors.New("boom"), apperrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToAppError(tt.err).Code; got != tt.wantCode {
				t.Fatalf("got %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(Config{Host: "127.0.0.1", Port: 0}, "test")
	srv.http.Addr = "127.0.0.1:0"
	srv.Engine().GET("/ping", func(c *gin.Context) { RespondOK(c, "pong") })

	if h := srv.Health(context.Background()); h.Status != observability.HealthStatusDown {
		t.Fatalf("expected down before start, got %+v", h)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("middleware stack must set X-Request-Id")
	}
	if h := srv.Health(context.Background()); h.Status != observability.HealthStatusUp {
		t.Fatalf("expected up, got %+v", h)
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr() + "/ping"); err == nil {
		t.Fatal("expected connection failure after Stop")
	}
}

func TestServer_RecoversPanics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(Config{}, "test")
	srv.Engine().GET("/panic", func(*gin.Context) { panic("handler bug") })

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestRespondWithError_CarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(Config{}, "test")

	req := httptest.NewRequest(http.MethodGet, "/missing", http.NoBody)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id req-42, got %q", body.Error.RequestID)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != 8080 || cfg.WriteTimeout != 0 || cfg.MaxBodySize != "10MB" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port out of range to fail")
	}
}
