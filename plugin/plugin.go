package plugin

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbukum/pipekit/sandbox"
)

// Plugin runs named tools. Implementations must not retain payload and
// must return a JSON-serializable map.
type Plugin interface {
	ID() string
	RunTool(ctx context.Context, toolID string, payload map[string]any) (map[string]any, error)
}

// ToolHandler is the function form of one in-process tool.
type ToolHandler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Static is an in-process plugin backed by a map of handlers.
type Static struct {
	id    string
	tools map[string]ToolHandler
}

// NewStatic creates an in-process plugin.
func NewStatic(id string, tools map[string]ToolHandler) *Static {
	return &Static{id: id, tools: tools}
}

// ID returns the plugin id.
func (s *Static) ID() string { return s.id }

// ToolIDs returns the registered tool ids, sorted.
func (s *Static) ToolIDs() []string {
	ids := make([]string, 0, len(s.tools))
	for id := range s.tools {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RunTool dispatches to the named handler.
func (s *Static) RunTool(ctx context.Context, toolID string, payload map[string]any) (map[string]any, error) {
	h, ok := s.tools[toolID]
	if !ok {
		return nil, fmt.Errorf("plugin %s has no tool %q: %w", s.id, toolID, sandbox.ErrMissingDependency)
	}
	return h(ctx, payload)
}
