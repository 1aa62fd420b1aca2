package plugin

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/kbukum/pipekit/errors"
	"github.com/kbukum/pipekit/sandbox"
)

// Registry indexes plugins by id and tool metadata by (plugin, tool).
// Reads may run concurrently; writes are serialized.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	tools   map[toolKey]ToolMetadata
	status  *StatusTracker
}

// NewRegistry creates an empty registry with its own status tracker.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		tools:   make(map[toolKey]ToolMetadata),
		status:  NewStatusTracker(),
	}
}

// Register adds a plugin and its tool metadata. A plugin id may only be
// registered once.
func (r *Registry) Register(p Plugin, tools ...ToolMetadata) error {
	id := p.ID()
	if id == "" {
		return fmt.Errorf("plugin: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[id]; exists {
		return fmt.Errorf("plugin: %q already registered", id)
	}
	r.plugins[id] = p
	r.addToolsLocked(id, tools)
	r.status.Track(id)
	return nil
}

// AddTools records metadata for tools whose plugin may be registered
// later or elsewhere.
func (r *Registry) AddTools(tools ...ToolMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addToolsLocked("", tools)
}

func (r *Registry) addToolsLocked(pluginID string, tools []ToolMetadata) {
	for _, t := range tools {
		if pluginID != "" {
			t.PluginID = pluginID
		}
		r.tools[toolKey{t.PluginID, t.ToolID}] = t
	}
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// IDs returns the registered plugin ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tool returns metadata for a tool.
func (r *Registry) Tool(pluginID, toolID string) (ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.tools[toolKey{pluginID, toolID}]
	return m, ok
}

// ResolveCapability returns every tool advertising label, ordered by
// plugin then tool id.
func (r *Registry) ResolveCapability(label string) []ToolMetadata {
	r.mu.RLock()
	var out []ToolMetadata
	for _, m := range r.tools {
		if m.HasCapability(label) {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ToolMetadata) int {
		if c := strings.Compare(a.PluginID, b.PluginID); c != 0 {
			return c
		}
		return strings.Compare(a.ToolID, b.ToolID)
	})
	return out
}

// Status returns the execution status tracker.
func (r *Registry) Status() *StatusTracker { return r.status }

// ToolFunc adapts a plugin tool to the sandbox. The plugin is resolved at
// call time; an unknown plugin fails with PLUGIN_NOT_FOUND, which the
// sandbox classifies as a missing dependency.
func (r *Registry) ToolFunc(pluginID, toolID string) sandbox.ToolFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p, ok := r.Get(pluginID)
		if !ok {
			return nil, apperrors.PluginNotFound(pluginID)
		}
		return p.RunTool(ctx, toolID, args)
	}
}
