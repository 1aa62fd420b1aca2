package plugin

import "slices"

// ToolMetadata describes one tool's type tags and capabilities.
type ToolMetadata struct {
	PluginID     string   `json:"plugin_id" yaml:"plugin_id"`
	ToolID       string   `json:"tool_id" yaml:"tool_id"`
	InputTypes   []string `json:"input_types" yaml:"input_types"`
	OutputTypes  []string `json:"output_types" yaml:"output_types"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// HasCapability reports whether the tool advertises label.
func (m ToolMetadata) HasCapability(label string) bool {
	return slices.Contains(m.Capabilities, label)
}

// Catalog looks up tool metadata.
type Catalog interface {
	Tool(pluginID, toolID string) (ToolMetadata, bool)
}

type toolKey struct {
	plugin, tool string
}
