// Package server is the pipekit HTTP surface: a Gin engine served over
// HTTP/1.1 and h2c, with a shared middleware stack and OpenTelemetry
// request instrumentation.
//
// Handlers live in server/endpoint; cross-cutting concerns in
// server/middleware. The WebSocket stream endpoint is mounted on the root
// mux beside Gin so upgrades bypass the response-writer wrapping of the
// instrumented REST routes.
package server
