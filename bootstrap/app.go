package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/pipekit/component"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
)

const defaultGracefulTimeout = 15 * time.Second

// App is a service with uniform lifecycle management.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onReady         []Hook
	onStop          []Hook
}

// NewApp applies config defaults, validates the config and initializes
// the global logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := appOptions{gracefulTimeout: defaultGracefulTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	base := cfg.GetServiceConfig()
	if o.logger == nil {
		logger.Init(base.Logging, base.Name)
		o.logger = logger.GetGlobalLogger()
	}

	return &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Logger:          o.logger,
		gracefulTimeout: o.gracefulTimeout,
	}, nil
}

// RegisterComponent adds c to the lifecycle. Components start in
// registration order.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// Run starts every component, blocks until SIGINT, SIGTERM or ctx is
// done, then shuts down.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		// Release whatever did start.
		return errors.Join(err, a.Shutdown())
	}
	a.WaitForSignal(ctx)
	return a.Shutdown()
}

// Start starts the components and runs the ready hooks. A component that
// is not up afterwards is logged, not fatal.
func (a *App[C]) Start(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Logger.Info("application ready", logger.Fields(logger.FieldDuration, time.Since(start).Milliseconds()))
	return nil
}

// ReadyCheck returns an error naming every component that is not up.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var bad []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == observability.HealthStatusUp {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += " (" + h.Message + ")"
		}
		bad = append(bad, detail)
	}
	if len(bad) > 0 {
		return fmt.Errorf("components not ready: %s", strings.Join(bad, ", "))
	}
	return nil
}

// WaitForSignal blocks until an interrupt or termination signal arrives or
// ctx is done.
func (a *App[C]) WaitForSignal(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	a.Logger.Info("shutdown requested")
}

// Shutdown stops the components in reverse order and then runs the stop
// hooks, all within the graceful timeout.
func (a *App[C]) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := a.Components.StopAll(ctx)
	if hookErr := runHooks(ctx, a.onStop); hookErr != nil {
		err = errors.Join(err, fmt.Errorf("onStop hook failed: %w", hookErr))
	}
	if err != nil {
		a.Logger.Error("shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
