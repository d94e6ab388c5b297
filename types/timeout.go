package types

import (
	"fmt"
	"time"
)

// Engine-wide timeout discipline. Every dispatch runs under a bounded
// deadline; caller overrides are clamped into [MinTimeout, MaxTimeout].
const (
	// DefaultTimeout is used when neither the call nor the configuration
	// specifies one.
	DefaultTimeout = 30 * time.Second

	// MinTimeout is the lowest timeout a caller may request.
	MinTimeout = 1 * time.Second

	// MaxTimeout is the highest timeout a caller may request.
	MaxTimeout = 300 * time.Second
)

// TimeoutConfig defines timeout bounds for request dispatch. It specifies
// default, minimum, and maximum values that control how long a call is
// allowed to run.
type TimeoutConfig struct {
	// Default is the timeout to use if the caller doesn't specify one.
	// A zero value means use DefaultTimeout.
	Default time.Duration `yaml:"default"`

	// Max is the maximum allowed timeout. A zero value means MaxTimeout.
	Max time.Duration `yaml:"max"`

	// Min is the minimum allowed timeout. A zero value means MinTimeout.
	Min time.Duration `yaml:"min"`
}

// Validate checks that the timeout configuration is internally consistent:
// min must not exceed max, and a set default must fall within the bounds.
func (c TimeoutConfig) Validate() error {
	min, max := c.bounds()
	if min > max {
		return fmt.Errorf("min timeout %v exceeds max timeout %v", min, max)
	}
	if c.Default > 0 {
		if c.Default < min {
			return fmt.Errorf("default timeout %v below min %v", c.Default, min)
		}
		if c.Default > max {
			return fmt.Errorf("default timeout %v exceeds max %v", c.Default, max)
		}
	}
	return nil
}

// Resolve returns the effective timeout for one call: the requested value
// clamped into the configured bounds, or the default when the caller
// requested none.
func (c TimeoutConfig) Resolve(requested time.Duration) time.Duration {
	min, max := c.bounds()
	if requested <= 0 {
		if c.Default > 0 {
			return c.Default
		}
		return DefaultTimeout
	}
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

func (c TimeoutConfig) bounds() (time.Duration, time.Duration) {
	min, max := c.Min, c.Max
	if min <= 0 {
		min = MinTimeout
	}
	if max <= 0 {
		max = MaxTimeout
	}
	return min, max
}
