package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/validation"
)

// Manifest describes a plugin and the tools it provides.
type Manifest struct {
	ID       string         `yaml:"id" json:"id" validate:"required"`
	Name     string         `yaml:"name" json:"name"`
	Version  string         `yaml:"version" json:"version"`
	Endpoint string         `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	Tools    []ToolManifest `yaml:"tools" json:"tools" validate:"dive"`
}

// ToolManifest describes one tool in a manifest.
type ToolManifest struct {
	ID           string   `yaml:"id" json:"id" validate:"required"`
	InputTypes   []string `yaml:"input_types" json:"input_types"`
	OutputTypes  []string `yaml:"output_types" json:"output_types"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
}

// Metadata converts the manifest's tools to catalog entries.
func (m *Manifest) Metadata() []ToolMetadata {
	out := make([]ToolMetadata, 0, len(m.Tools))
	for _, t := range m.Tools {
		out = append(out, ToolMetadata{
			PluginID:     m.ID,
			ToolID:       t.ID,
			InputTypes:   t.InputTypes,
			OutputTypes:  t.OutputTypes,
			Capabilities: t.Capabilities,
		})
	}
	return out
}

// ParseManifest decodes and validates one YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validation.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", m.ID, err)
	}
	return &m, nil
}

// LoadManifests reads every .yaml/.yml file in dir. Files that fail to
// parse or validate are logged and skipped. A missing directory yields no
// manifests.
func LoadManifests(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest dir: %w", err)
	}

	log := logger.WithComponent("plugin.manifest")
	var out []*Manifest
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("skipping unreadable manifest", logger.Fields(logger.FieldPath, path, logger.FieldError, err.Error()))
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			log.Warn("skipping invalid manifest", logger.Fields(logger.FieldPath, path, logger.FieldError, err.Error()))
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Manifest) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// RegisterManifests registers an HTTPPlugin for every manifest with an
// endpoint and records the tool metadata of the rest. A manifest whose id
// repeats an earlier manifest or names an already registered plugin is
// logged and skipped. It returns the number of manifests applied.
func RegisterManifests(reg *Registry, manifests []*Manifest, cfg Config) int {
	log := logger.WithComponent("plugin.manifest")
	seen := make(map[string]struct{}, len(manifests))
	applied := 0
	for _, m := range manifests {
		if _, dup := seen[m.ID]; dup {
			log.Warn("skipping duplicate manifest id", logger.Fields(logger.FieldPluginID, m.ID))
			continue
		}
		seen[m.ID] = struct{}{}
		if _, taken := reg.Get(m.ID); taken {
			log.Warn("skipping manifest for registered plugin", logger.Fields(logger.FieldPluginID, m.ID))
			continue
		}

		if m.Endpoint == "" {
			reg.AddTools(m.Metadata()...)
		} else if err := reg.Register(NewHTTPPlugin(m.ID, m.Endpoint, cfg), m.Metadata()...); err != nil {
			log.Warn("skipping manifest", logger.Fields(logger.FieldPluginID, m.ID, logger.FieldError, err.Error()))
			continue
		}
		applied++
	}
	return applied
}
