package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/pipekit/dag"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/sandbox"
)

var validFrame = []byte{0xFF, 0xD8, 0xFF, 0xD9}

func TestFrameValidator(t *testing.T) {
	v := NewFrameValidator(Config{})
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"minimal jpeg", validFrame, ""},
		{"empty", nil, CodeInvalidFrame},
		{"missing start marker", []byte{0x00, 0x00, 0xFF, 0xD9}, CodeInvalidFrame},
		{"missing end marker", []byte{0xFF, 0xD8, 0x00, 0x00}, CodeInvalidFrame},
		{"six megabytes", append(append([]byte{0xFF, 0xD8}, make([]byte, 6_000_000)...), 0xFF, 0xD9), CodeFrameTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.data)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected valid frame, got %v", err)
				}
				return
			}
			if err == nil || err.Code != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			if bytes.ContainsAny([]byte(err.Detail), "\n") || err.Detail == "" {
				t.Fatalf("detail must be a short single line, got %q", err.Detail)
			}
		})
	}
}

func TestFrameError_AppError(t *testing.T) {
	if got := (&FrameError{Code: CodeFrameTooLarge, Detail: "big"}).AppError(); got.HTTPStatus != 413 {
		t.Fatalf("expected 413, got %d", got.HTTPStatus)
	}
	if got := (&FrameError{Code: CodeInvalidFrame, Detail: "bad"}).AppError(); got.HTTPStatus != 400 {
		t.Fatalf("expected 400, got %d", got.HTTPStatus)
	}
}

func TestSession_DropRate(t *testing.T) {
	s := NewSession("p", Config{})
	if s.DropRate() != 0 {
		t.Fatalf("expected 0 before any frame, got %v", s.DropRate())
	}
	for i := 0; i < 10; i++ {
		s.NextFrame()
	}
	s.MarkDropped()
	s.MarkDropped()
	if s.DropRate() != 0.2 {
		t.Fatalf("expected 0.2, got %v", s.DropRate())
	}
	if s.ID == "" || s.ID == NewSession("p", Config{}).ID {
		t.Fatal("sessions must get unique ids")
	}
}

func TestSession_ShouldDropFrame(t *testing.T) {
	s := NewSession("p", Config{FrameBudgetMs: 100, DropThreshold: Threshold(0.1)})
	s.NextFrame()
	if s.ShouldDropFrame(50) {
		t.Fatal("frame within budget must not be dropped")
	}
	if !s.ShouldDropFrame(150) {
		t.Fatal("frame over budget must be dropped")
	}

	s.MarkDropped() // drop rate 1.0, above threshold
	if !s.ShouldDropFrame(60) {
		t.Fatal("under pressure the budget is halved")
	}
}

func TestSession_SlowDownOnce(t *testing.T) {
	s := NewSession("p", Config{SlowdownThreshold: Threshold(0.3)})
	fired := 0
	for i := 0; i < 50; i++ {
		s.NextFrame()
		s.MarkDropped()
		if s.ShouldSlowDown() {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("slow_down must fire exactly once, fired %d times", fired)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.MaxFrameBytes() != 5<<20 || cfg.DropLimit() != 0.10 || cfg.SlowdownLimit() != 0.30 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.FrameBudget() != 500*time.Millisecond {
		t.Fatalf("unexpected budget %s", cfg.FrameBudget())
	}
	bad := Config{DropThreshold: Threshold(1.5)}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected drop threshold above 1 to fail validation")
	}
}

func TestConfig_ZeroThresholdsAreKept(t *testing.T) {
	cfg := Config{DropThreshold: Threshold(0), SlowdownThreshold: Threshold(0)}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero thresholds must validate: %v", err)
	}
	if cfg.DropLimit() != 0 || cfg.SlowdownLimit() != 0 {
		t.Fatalf("zero thresholds replaced by defaults: drop=%v slow=%v", cfg.DropLimit(), cfg.SlowdownLimit())
	}

	s := NewSession("p", Config{FrameBudgetMs: 100, DropThreshold: Threshold(0), SlowdownThreshold: Threshold(0)})
	if s.DropThreshold != 0 || s.SlowdownThreshold != 0 {
		t.Fatalf("session thresholds drop=%v slow=%v", s.DropThreshold, s.SlowdownThreshold)
	}
	s.NextFrame()
	s.MarkDropped()
	if !s.ShouldSlowDown() {
		t.Fatal("a zero slow-down threshold warns on the first drop")
	}
	if !s.ShouldDropFrame(60) {
		t.Fatal("a zero drop threshold halves the budget after the first drop")
	}
}

type message struct {
	typ  int
	data []byte
}

type fakeConn struct {
	mu     sync.Mutex
	in     []message
	out    []any
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.in) == 0 {
		return 0, nil, io.EOF
	}
	m := c.in[0]
	c.in = c.in[1:]
	return m.typ, m.data, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func frames(n int) []message {
	msgs := make([]message, n)
	for i := range msgs {
		msgs[i] = message{BinaryMessage, validFrame}
	}
	return msgs
}

type fakePipelines map[string]bool

func (f fakePipelines) Get(id string) (*dag.Pipeline, bool) {
	if !f[id] {
		return nil, false
	}
	return dag.Compile(dag.Definition{ID: id}), true
}

type runnerFunc func(ctx context.Context, id string, payload map[string]any) (map[string]any, error)

func (f runnerFunc) Run(ctx context.Context, id string, payload map[string]any) (map[string]any, error) {
	return f(ctx, id, payload)
}

func echoRunner(delay time.Duration) runnerFunc {
	return func(_ context.Context, _ string, payload map[string]any) (map[string]any, error) {
		time.Sleep(delay)
		out := map[string]any{"label": "player"}
		for k, v := range payload {
			out[k] = v
		}
		return out, nil
	}
}

func TestController_StreamsResults(t *testing.T) {
	rec := &observability.Recorder{}
	conn := &fakeConn{in: frames(3)}
	c := NewController(Config{}, fakePipelines{"p": true}, echoRunner(0), WithEvents(rec))

	c.Serve(context.Background(), conn, "p")

	if !conn.closed {
		t.Fatal("connection must be closed")
	}
	if len(conn.out) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(conn.out), conn.out)
	}
	for i, m := range conn.out {
		res, ok := m.(FrameResult)
		if !ok {
			t.Fatalf("message %d: expected FrameResult, got %T", i, m)
		}
		if res.FrameIndex != i+1 {
			t.Fatalf("message %d: unexpected frame index %d", i, res.FrameIndex)
		}
		if res.Result["label"] != "player" || res.Result[PayloadFrame] != nil {
			t.Fatalf("message %d: unexpected result %v", i, res.Result)
		}
	}
	if got := rec.Names(); !slices.Equal(got, []string{EventConnect, EventDisconnect}) {
		t.Fatalf("unexpected events %v", got)
	}
	if id, _ := rec.Events()[0].Fields[logger.FieldSessionID].(string); id == "" {
		t.Fatal("events must carry the session id")
	}
}

func TestController_FramesInOrder(t *testing.T) {
	var seen []int
	runner := runnerFunc(func(_ context.Context, _ string, payload map[string]any) (map[string]any, error) {
		seen = append(seen, payload[PayloadFrameIndex].(int))
		return nil, nil
	})
	c := NewController(Config{}, fakePipelines{"p": true}, runner)
	c.Serve(context.Background(), &fakeConn{in: frames(5)}, "p")

	if !slices.Equal(seen, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("frames must run in arrival order, got %v", seen)
	}
}

func TestController_InvalidPipeline(t *testing.T) {
	tests := []struct {
		name       string
		pipelineID string
	}{
		{"empty", ""},
		{"unknown", "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &observability.Recorder{}
			conn := &fakeConn{in: frames(1)}
			c := NewController(Config{}, fakePipelines{"p": true}, echoRunner(0), WithEvents(rec))

			c.Serve(context.Background(), conn, tt.pipelineID)

			if len(conn.out) != 1 || conn.out[0].(ErrorMessage).Error != CodeInvalidPipeline {
				t.Fatalf("expected invalid_pipeline, got %+v", conn.out)
			}
			if !conn.closed {
				t.Fatal("connection must be closed")
			}
			if len(rec.Names()) != 0 {
				t.Fatalf("no session must be created, got events %v", rec.Names())
			}
		})
	}
}

func TestController_RejectsAndCloses(t *testing.T) {
	tests := []struct {
		name string
		msg  message
		want string
	}{
		{"text message", message{TextMessage, []byte("hello")}, CodeInvalidMessage},
		{"bad frame", message{BinaryMessage, []byte{0x00, 0x00, 0xFF, 0xD9}}, CodeInvalidFrame},
		{"huge frame", message{BinaryMessage, append(append([]byte{0xFF, 0xD8}, make([]byte, 6_000_000)...), 0xFF, 0xD9)}, CodeFrameTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{in: append([]message{tt.msg}, frames(2)...)}
			c := NewController(Config{}, fakePipelines{"p": true}, echoRunner(0))
			c.Serve(context.Background(), conn, "p")

			if len(conn.out) != 1 {
				t.Fatalf("expected a single error message, got %+v", conn.out)
			}
			if got := conn.out[0].(ErrorMessage); got.Error != tt.want || got.Detail == "" {
				t.Fatalf("expected %s, got %+v", tt.want, got)
			}
		})
	}
}

func TestController_PipelineFailure(t *testing.T) {
	rec := &observability.Recorder{}
	runner := runnerFunc(func(context.Context, string, map[string]any) (map[string]any, error) {
		return nil, &dag.NodeError{PipelineID: "p", NodeID: "read", Type: sandbox.TypeRuntime, Message: "trace\nline2"}
	})
	conn := &fakeConn{in: frames(2)}
	NewController(Config{}, fakePipelines{"p": true}, runner, WithEvents(rec)).Serve(context.Background(), conn, "p")

	if len(conn.out) != 1 {
		t.Fatalf("expected one message, got %+v", conn.out)
	}
	got := conn.out[0].(ErrorMessage)
	if got.Error != CodePipelineFailure || got.Detail != "node read failed with RuntimeError" {
		t.Fatalf("unexpected error message %+v", got)
	}
	want := []string{EventConnect, EventPipelineError, EventDisconnect}
	if !slices.Equal(rec.Names(), want) {
		t.Fatalf("events: got %v, want %v", rec.Names(), want)
	}
}

func TestController_PanicIsInternalError(t *testing.T) {
	runner := runnerFunc(func(context.Context, string, map[string]any) (map[string]any, error) {
		panic("unexpected")
	})
	conn := &fakeConn{in: frames(2)}
	NewController(Config{}, fakePipelines{"p": true}, runner).Serve(context.Background(), conn, "p")

	if len(conn.out) != 1 || conn.out[0].(ErrorMessage).Error != CodeInternalError {
		t.Fatalf("expected internal_error, got %+v", conn.out)
	}
	if conn.out[0].(ErrorMessage).Detail != "internal error" {
		t.Fatal("panic details must not leak to the client")
	}
}

func TestController_BackpressureDropsAndWarnsOnce(t *testing.T) {
	cfg := Config{FrameBudgetMs: 1, SlowdownThreshold: Threshold(0.3)}
	conn := &fakeConn{in: frames(6)}
	NewController(cfg, fakePipelines{"p": true}, echoRunner(5*time.Millisecond)).Serve(context.Background(), conn, "p")

	var dropped, warnings int
	for _, m := range conn.out {
		switch v := m.(type) {
		case FrameDropped:
			if !v.Dropped {
				t.Fatal("dropped marker must be true")
			}
			dropped++
		case WarningMessage:
			if v.Warning != WarningSlowDown {
				t.Fatalf("unexpected warning %q", v.Warning)
			}
			warnings++
		case FrameResult:
			t.Fatalf("slow frames must be dropped, got result %+v", v)
		}
	}
	if dropped != 6 {
		t.Fatalf("expected 6 dropped frames, got %d", dropped)
	}
	if warnings != 1 {
		t.Fatalf("expected exactly one slow_down warning, got %d", warnings)
	}
	if _, ok := conn.out[1].(WarningMessage); !ok {
		t.Fatalf("warning must follow the first over-threshold frame, got %T", conn.out[1])
	}
}

func TestController_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn := &fakeConn{in: frames(3)}
	NewController(Config{}, fakePipelines{"p": true}, echoRunner(0)).Serve(ctx, conn, "p")
	if len(conn.out) != 0 || !conn.closed {
		t.Fatalf("cancelled session must close without processing, got %+v", conn.out)
	}
}

func TestFailureDetail_Generic(t *testing.T) {
	if got := failureDetail(errors.New("first line\nsecond line")); got != "first line" {
		t.Fatalf("unexpected detail %q", got)
	}
}
