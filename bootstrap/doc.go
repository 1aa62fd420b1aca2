// Package bootstrap runs a service through its lifecycle: validate the
// config, initialize logging, start components, wait for a shutdown
// signal, then stop everything within a graceful deadline.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(httpServer)
//	app.OnStop(flushTelemetry)
//	err = app.Run(ctx)
package bootstrap
