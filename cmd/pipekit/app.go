package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kbukum/pipekit/bootstrap"
	"github.com/kbukum/pipekit/component"
	"github.com/kbukum/pipekit/dag"
	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/sandbox"
	"github.com/kbukum/pipekit/server"
	"github.com/kbukum/pipekit/server/endpoint"
	"github.com/kbukum/pipekit/stream"
)

// run wires every subsystem and blocks until shutdown.
func run(ctx context.Context, cfg *Config) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Name, cfg.Version, cfg.Environment, cfg.Observability)
	if err != nil {
		return fmt.Errorf("observability setup: %w", err)
	}
	app.OnStop(shutdownTelemetry)

	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("observability metrics: %w", err)
	}
	events := observability.MultiSink{
		observability.LogSink{Log: log.WithComponent("events")},
		observability.SpanSink{},
	}

	plugins, err := loadPlugins(cfg.Plugins)
	if err != nil {
		return err
	}

	pipelines := dag.NewRegistry(cfg.Pipelines.Dir, plugins)
	if _, err := pipelines.Load(); err != nil {
		log.Warn("no pipelines loaded", logger.Fields(logger.FieldPath, cfg.Pipelines.Dir, logger.FieldError, err.Error()))
	}

	sb := sandbox.New(cfg.Sandbox,
		sandbox.WithReporter(plugins.Status()),
		sandbox.WithMetrics(metrics),
	)
	executor := dag.NewExecutor(pipelines, plugins, sb,
		dag.WithEvents(events),
		dag.WithMetrics(metrics),
	)
	controller := stream.NewController(cfg.Stream, pipelines, executor,
		stream.WithEvents(events),
		stream.WithMetrics(metrics),
	)

	if cfg.Pipelines.Watch {
		watcher := component.NewBackground("pipeline-watcher",
			component.Description{Type: "fsnotify", Details: cfg.Pipelines.Dir},
			func(ctx context.Context) error { return pipelines.Watch(ctx, cfg.Pipelines.WatchDebounce()) },
		)
		if err := app.RegisterComponent(watcher); err != nil {
			return err
		}
	}

	srv := server.New(cfg.Server, cfg.Name)
	if err := registerRoutes(app, srv, plugins, pipelines, executor, controller); err != nil {
		return err
	}

	// Registered after the server so sessions are closed before the
	// server drains: hijacked connections are not tracked by Shutdown.
	streamCtx, closeSessions := context.WithCancel(context.Background())
	srv.Handle("/v1/stream", endpoint.NewStream(streamCtx, controller, cfg.Server.CORS))
	if err := app.RegisterComponent(srv); err != nil {
		closeSessions()
		return err
	}
	sessions := component.NewBackground("stream-sessions",
		component.Description{Type: "websocket", Details: "/v1/stream"},
		func(ctx context.Context) error {
			<-ctx.Done()
			closeSessions()
			return nil
		},
	)
	if err := app.RegisterComponent(sessions); err != nil {
		closeSessions()
		return err
	}

	return app.Run(ctx)
}

// loadPlugins registers the built-in plugin and every manifest in the
// manifest directory.
func loadPlugins(cfg plugin.Config) (*plugin.Registry, error) {
	plugins := plugin.NewRegistry()
	builtin, tools := builtinPlugin()
	if err := plugins.Register(builtin, tools...); err != nil {
		return nil, err
	}

	manifests, err := plugin.LoadManifests(cfg.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("plugin manifests: %w", err)
	}
	plugin.RegisterManifests(plugins, manifests, cfg)
	return plugins, nil
}

func registerRoutes(app *bootstrap.App[*Config], srv *server.Server, plugins *plugin.Registry,
	pipelines *dag.Registry, executor *dag.Executor, controller *stream.Controller) error {
	promRegistry := prometheus.NewRegistry()
	if err := registerCollectors(promRegistry,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		plugin.NewStatusCollector(plugins.Status()),
	); err != nil {
		return err
	}

	pluginRoutes := endpoint.NewPlugins(plugins.Status())
	r := srv.Engine()
	r.GET("/health", endpoint.Health(app.Name, app.Version, app.Components.HealthAll, pluginRoutes.HealthCheck))
	r.GET("/info", endpoint.Info(app.Name))
	r.GET("/metrics", endpoint.Metrics(promRegistry))
	endpoint.NewPipelines(pipelines, executor, controller.Validator()).Register(r)
	pluginRoutes.Register(r)
	return nil
}

func registerCollectors(reg *prometheus.Registry, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("metrics collector: %w", err)
		}
	}
	return nil
}
