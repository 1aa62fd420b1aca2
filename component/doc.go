// Package component manages the lifecycle of long-running parts of the
// service: the HTTP server, the pipeline directory watcher and the
// telemetry exporters.
//
// Components start in registration order and stop in reverse order. Their
// health is aggregated into the /health response.
package component
