package main

import (
	"fmt"
	"time"

	"github.com/kbukum/pipekit/config"
	"github.com/kbukum/pipekit/observability"
	"github.com/kbukum/pipekit/plugin"
	"github.com/kbukum/pipekit/sandbox"
	"github.com/kbukum/pipekit/server"
	"github.com/kbukum/pipekit/stream"
	"github.com/kbukum/pipekit/validation"
)

// Config is the complete pipekit configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Pipelines     PipelinesConfig      `yaml:"pipelines" mapstructure:"pipelines"`
	Plugins       plugin.Config        `yaml:"plugins" mapstructure:"plugins"`
	Sandbox       sandbox.Config       `yaml:"sandbox" mapstructure:"sandbox"`
	Stream        stream.Config        `yaml:"stream" mapstructure:"stream"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// PipelinesConfig locates pipeline documents.
type PipelinesConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir" validate:"required"`
	Watch           bool   `yaml:"watch" mapstructure:"watch"`
	WatchDebounceMs int    `yaml:"watch_debounce_ms" mapstructure:"watch_debounce_ms" validate:"gte=0"`
}

func (c *PipelinesConfig) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "./pipelines"
	}
	if c.WatchDebounceMs == 0 {
		c.WatchDebounceMs = 250
	}
}

func (c PipelinesConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Pipelines.ApplyDefaults()
	c.Plugins.ApplyDefaults()
	c.Sandbox.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate validates every section and prefixes errors with its key.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		key      string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"pipelines", func() error { return validation.Struct(&c.Pipelines) }},
		{"plugins", c.Plugins.Validate},
		{"sandbox", c.Sandbox.Validate},
		{"stream", c.Stream.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config.%s: %w", s.key, err)
		}
	}
	return nil
}
