// Package dag models pipelines of plugin tool invocations as directed
// acyclic graphs, validates them, keeps them in a registry loaded from a
// directory of documents, and executes them.
//
// Execution is sequential in topological order (Kahn's algorithm, queue
// seeded in declaration order). Every node's tool runs through the
// sandbox with a copy of the current context; its output is merged back
// into the context with last-writer-wins semantics. A merge node with
// several predecessors runs once, after all of them.
//
// The executor emits lifecycle events (pipeline_started,
// pipeline_node_started, pipeline_node_completed, pipeline_node_failed,
// pipeline_completed, pipeline_failed) to an observability.Sink.
package dag
