package dag

// Lifecycle event names emitted by the Executor.
const (
	EventPipelineStarted   = "pipeline_started"
	EventNodeStarted       = "pipeline_node_started"
	EventNodeCompleted     = "pipeline_node_completed"
	EventNodeFailed        = "pipeline_node_failed"
	EventPipelineCompleted = "pipeline_completed"
	EventPipelineFailed    = "pipeline_failed"
)
