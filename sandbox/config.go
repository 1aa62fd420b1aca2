package sandbox

import (
	"time"

	"github.com/kbukum/pipekit/validation"
)

// Defaults for Config.
const (
	DefaultTimeoutSeconds   = 60
	DefaultMemoryLimitBytes = 1 << 30
	DefaultMaxConcurrent    = 64
)

// Config holds the sandbox limits.
type Config struct {
	TimeoutSeconds   float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"gte=0"`
	MemoryLimitBytes uint64  `yaml:"memory_limit_bytes" mapstructure:"memory_limit_bytes"`
	// MaxConcurrent caps live worker goroutines, abandoned ones included.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	// QueueWaitMs is how long a call waits for a free worker slot. 0 fails
	// at once.
	QueueWaitMs int `yaml:"queue_wait_ms" mapstructure:"queue_wait_ms" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MemoryLimitBytes == 0 {
		c.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// QueueWait returns how long a call may wait for a worker slot.
func (c Config) QueueWait() time.Duration {
	return time.Duration(c.QueueWaitMs) * time.Millisecond
}

// Timeout returns the configured wall-clock limit.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
