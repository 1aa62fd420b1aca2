package dag

import (
	"fmt"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/sandbox"
)

// NodeError reports the node that aborted a run. The sandbox
// classification is preserved in Type and through Unwrap.
type NodeError struct {
	PipelineID string
	RunID      string
	NodeID     string
	PluginID   string
	ToolID     string
	Type       sandbox.ErrorType
	Message    string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("dag: pipeline %s node %s (%s.%s) failed: %s: %s",
		e.PipelineID, e.NodeID, e.PluginID, e.ToolID, e.Type, e.Message)
}

// Unwrap exposes the classified failure, so errors.Is matches the
// sandbox sentinels.
func (e *NodeError) Unwrap() error {
	return &sandbox.Error{Type: e.Type, Msg: e.Message}
}

// AppError translates the failure for transport layers.
func (e *NodeError) AppError() *apperrors.AppError {
	return apperrors.PipelineFailure(e.PipelineID, e.NodeID, fmt.Sprintf("%s: %s", e.Type, e.Message)).
		WithDetail("error_type", string(e.Type)).
		WithDetail("run_id", e.RunID).
		WithCause(e)
}
