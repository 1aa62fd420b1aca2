package stream

import (
	"time"

	"github.com/kbukum/pipekit/validation"
)

// Defaults for the backpressure thresholds.
const (
	DefaultDropThreshold     = 0.10
	DefaultSlowdownThreshold = 0.30
)

// Config holds the streaming limits. Values are read once per session.
// The thresholds are pointers because 0 is a meaningful setting: a drop
// threshold of 0 halves the frame budget after the first drop, and a
// slow-down threshold of 0 warns on the first drop.
type Config struct {
	MaxFrameMB        float64  `yaml:"max_frame_mb" mapstructure:"max_frame_mb" validate:"gte=0"`
	DropThreshold     *float64 `yaml:"drop_threshold" mapstructure:"drop_threshold" validate:"omitempty,gte=0,lte=1"`
	SlowdownThreshold *float64 `yaml:"slowdown_threshold" mapstructure:"slowdown_threshold" validate:"omitempty,gte=0,lte=1"`
	FrameBudgetMs     float64  `yaml:"frame_budget_ms" mapstructure:"frame_budget_ms" validate:"gte=0"`
}

// Threshold returns a pointer to v for the threshold fields.
func Threshold(v float64) *float64 { return &v }

// ApplyDefaults fills unset fields. Thresholds are unset only when nil.
func (c *Config) ApplyDefaults() {
	if c.MaxFrameMB == 0 {
		c.MaxFrameMB = 5
	}
	if c.DropThreshold == nil {
		c.DropThreshold = Threshold(DefaultDropThreshold)
	}
	if c.SlowdownThreshold == nil {
		c.SlowdownThreshold = Threshold(DefaultSlowdownThreshold)
	}
	if c.FrameBudgetMs == 0 {
		c.FrameBudgetMs = 500
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.Struct(c)
}

// DropLimit returns the drop threshold, or its default when unset.
func (c Config) DropLimit() float64 {
	if c.DropThreshold == nil {
		return DefaultDropThreshold
	}
	return *c.DropThreshold
}

// SlowdownLimit returns the slow-down threshold, or its default when unset.
func (c Config) SlowdownLimit() float64 {
	if c.SlowdownThreshold == nil {
		return DefaultSlowdownThreshold
	}
	return *c.SlowdownThreshold
}

// MaxFrameBytes returns the frame size ceiling in bytes (MiB based).
func (c Config) MaxFrameBytes() int {
	return int(c.MaxFrameMB * (1 << 20))
}

// FrameBudget returns the per-frame latency budget.
func (c Config) FrameBudget() time.Duration {
	return time.Duration(c.FrameBudgetMs * float64(time.Millisecond))
}
