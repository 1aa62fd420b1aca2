package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/sandbox"
	"github.com/kbukum/pipekit/stream"
)

// builtinPlugin ships with the binary so pipelines can be exercised
// without an external plugin service.
func builtinPlugin() (*plugin.Static, []plugin.ToolMetadata) {
	p := plugin.NewStatic("builtin", map[string]plugin.ToolHandler{
		"frame_info": frameInfo,
		"echo":       echo,
	})
	return p, []plugin.ToolMetadata{
		{ToolID: "frame_info", InputTypes: []string{"image"}, OutputTypes: []string{"frame_info"}, Capabilities: []string{"inspect"}},
		{ToolID: "echo", OutputTypes: []string{"echo"}},
	}
}

func frameInfo(_ context.Context, payload map[string]any) (map[string]any, error) {
	frame, ok := payload[stream.PayloadFrame].([]byte)
	if !ok {
		return nil, fmt.Errorf("frame_info needs a %q byte payload: %w", stream.PayloadFrame, sandbox.ErrInvalidInput)
	}
	return map[string]any{"frame_bytes": len(frame)}, nil
}

// echo lists the payload keys it was given.
func echo(_ context.Context, payload map[string]any) (map[string]any, error) {
	return map[string]any{"echo_keys": slices.Sorted(maps.Keys(payload))}, nil
}
