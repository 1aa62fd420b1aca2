package dag

import (
	"maps"
	"time"
)

// Run is the report of one completed execution.
type Run struct {
	ID          string                    `json:"run_id"`
	PipelineID  string                    `json:"pipeline_id"`
	Order       []string                  `json:"order"`
	NodeOutputs map[string]map[string]any `json:"node_outputs"`
	Context     map[string]any            `json:"context"`
	Duration    time.Duration             `json:"-"`

	outputNodes []string
}

// DurationMs returns the run duration in milliseconds.
func (r *Run) DurationMs() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// Outputs merges the outputs of the declared output nodes in execution
// order, last writer winning. Context is left untouched.
func (r *Run) Outputs() map[string]any {
	wanted := make(map[string]bool, len(r.outputNodes))
	for _, id := range r.outputNodes {
		wanted[id] = true
	}
	out := make(map[string]any)
	for _, id := range r.Order {
		if wanted[id] {
			maps.Copy(out, r.NodeOutputs[id])
		}
	}
	return out
}
