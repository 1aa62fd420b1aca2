// Package observability wires OpenTelemetry tracing and metrics and carries
// the structured lifecycle events the engine emits.
//
// Events are the engine's only instrumentation surface: the DAG executor and
// the streaming controller emit them through a Sink, and the sinks here fan
// them out to the log and to the active trace span.
package observability
