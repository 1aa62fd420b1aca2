package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/resilience"
)

// ToolFunc is one tool invocation. It may return a Pending as its value.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Sandbox executes tool functions under a timeout and memory guard.
// It is safe for concurrent use.
type Sandbox struct {
	cfg        Config
	workers    *resilience.Bulkhead
	reporter   Reporter
	sampler    MemorySampler
	classifier Classifier
	log        *logger.Logger
	metrics    *observability.Metrics
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithReporter sets the lifecycle reporter.
func WithReporter(r Reporter) Option {
	return func(s *Sandbox) { s.reporter = r }
}

// WithMemorySampler replaces ProcessMemory.
func WithMemorySampler(fn MemorySampler) Option {
	return func(s *Sandbox) { s.sampler = fn }
}

// WithClassifier sets the failure classifier.
func WithClassifier(c Classifier) Option {
	return func(s *Sandbox) { s.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Sandbox) { s.log = l }
}

// WithMetrics records one sandbox.invocations sample per call.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sandbox) { s.metrics = m }
}

// New creates a Sandbox. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Sandbox {
	cfg.ApplyDefaults()
	s := &Sandbox{
		cfg: cfg,
		workers: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "sandbox",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.QueueWait(),
		}),
		reporter: nopReporter{},
		sampler:  ProcessMemory,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = nopReporter{}
	}
	return s
}

// Config returns the effective configuration.
func (s *Sandbox) Config() Config { return s.cfg }

// Run invokes fn with the configured timeout.
func (s *Sandbox) Run(ctx context.Context, pluginID string, fn ToolFunc, args map[string]any) Result {
	return s.RunWithTimeout(ctx, pluginID, fn, args, s.cfg.Timeout())
}

// RunWithTimeout invokes fn in a worker goroutine and waits at most timeout.
// On overrun the worker is abandoned and a TimeoutError result is returned.
// A non-positive timeout uses the configured one.
//
// Each worker holds a slot of the sandbox's bulkhead until fn really
// returns, so abandoned workers count against MaxConcurrent. When no slot
// is free the call fails with MemoryError without starting a goroutine.
func (s *Sandbox) RunWithTimeout(ctx context.Context, pluginID string, fn ToolFunc, args map[string]any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = s.cfg.Timeout()
	}
	start := time.Now()
	s.reporter.Report(pluginID, StateRunning, 0, false)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := s.workers.Acquire(callCtx)
	if err != nil {
		res := s.rejected(ctx, err, timeout)
		res.ExecutionTime = time.Since(start)
		s.finish(ctx, pluginID, res)
		return res
	}

	done := make(chan Result, 1)
	go func() {
		// Stays in place if fn ends the goroutine with runtime.Goexit.
		res := failure(TypeException, "tool exited without returning a result")
		defer func() {
			release()
			done <- res
		}()
		res = s.invoke(callCtx, fn, args)
	}()

	var res Result
	select {
	case res = <-done:
		if !res.OK && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res = timedOut(timeout)
		}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			res = failure(TypeException, fmt.Sprintf("cancelled: %v", ctx.Err()))
		} else {
			res = timedOut(timeout)
		}
	}
	res.ExecutionTime = time.Since(start)

	s.finish(ctx, pluginID, res)
	return res
}

// rejected maps a failure to get a worker slot to a Result.
func (s *Sandbox) rejected(ctx context.Context, err error, timeout time.Duration) Result {
	switch {
	case ctx.Err() != nil:
		return failure(TypeException, fmt.Sprintf("cancelled: %v", ctx.Err()))
	case errors.Is(err, context.DeadlineExceeded):
		return timedOut(timeout)
	default:
		return failure(TypeMemory, fmt.Sprintf("sandbox saturated: %d of %d workers busy: %v",
			s.workers.InUse(), s.workers.MaxConcurrent(), err))
	}
}

func timedOut(timeout time.Duration) Result {
	return failure(TypeTimeout, fmt.Sprintf("tool execution exceeded %s", timeout))
}

// invoke runs fn, awaits a Pending value, and applies the memory guard.
func (s *Sandbox) invoke(ctx context.Context, fn ToolFunc, args map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r, Stack: debug.Stack()}
			res = failure(s.classifier.Classify(err), err.Error())
		}
	}()

	if fn == nil {
		return failure(TypeImport, "tool function is not available")
	}

	before := s.sample()
	value, err := fn(ctx, args)
	if err == nil {
		if p, ok := value.(Pending); ok {
			value, err = p.Await(ctx)
		}
	}
	if err != nil {
		return failure(s.classifier.Classify(err), err.Error())
	}

	if peak := callPeak(before, s.sample()); peak > s.cfg.MemoryLimitBytes {
		return Result{
			ErrorType: TypeMemory,
			Error: fmt.Sprintf("memory_exceeded: peak resident memory %d bytes (was %d) above limit %d",
				peak, before.Resident, s.cfg.MemoryLimitBytes),
			MemoryExceeded: true,
		}
	}
	return Result{OK: true, Value: value}
}

// sample returns zero usage when no sampler is set or sampling fails,
// which disables the guard for that call.
func (s *Sandbox) sample() MemoryUsage {
	if s.sampler == nil {
		return MemoryUsage{}
	}
	usage, err := s.sampler()
	if err != nil {
		return MemoryUsage{}
	}
	return usage
}

func (s *Sandbox) finish(ctx context.Context, pluginID string, res Result) {
	if res.OK {
		s.reporter.Report(pluginID, StateInitialized, res.ExecutionTime, false)
	} else {
		s.reporter.Report(pluginID, StateFailed, res.ExecutionTime, true)
		s.log.Warn("sandboxed call failed", logger.Fields(
			logger.FieldPluginID, pluginID,
			logger.FieldErrorType, string(res.ErrorType),
			logger.FieldError, res.Error,
			logger.FieldDuration, res.ExecutionTime.Milliseconds(),
		))
	}
	s.metrics.RecordSandbox(ctx, pluginID, string(res.ErrorType), res.ExecutionTime)
}
