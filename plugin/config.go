package plugin

import (
	"time"

	"github.com/kbukum/pipekit/validation"
)

// Config configures manifest loading and HTTP-backed plugins.
type Config struct {
	ManifestDir           string        `yaml:"manifest_dir" mapstructure:"manifest_dir"`
	RequestTimeoutSeconds int           `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds" validate:"gte=0"`
	RetryAttempts         int           `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"gte=0,lte=10"`
	BreakerFailures       int           `yaml:"breaker_failures" mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerCooldown       time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ManifestDir == "" {
		c.ManifestDir = "./plugins"
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 2
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// RequestTimeout returns the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
