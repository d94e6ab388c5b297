package handshake

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/types"
)

// Config represents an engine configuration file. All sections are
// optional; zero values fall back to the engine defaults.
type Config struct {
	// Timeouts bounds per-call execution time.
	Timeouts TimeoutsConfig `yaml:"timeouts,omitempty"`

	// Retry controls transient-failure retry behavior.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// MaxRedirects caps redirect following per call.
	MaxRedirects int `yaml:"max_redirects,omitempty"`
}

// TimeoutsConfig configures the execution timeout bounds.
type TimeoutsConfig struct {
	Default time.Duration `yaml:"default,omitempty"`
	Min     time.Duration `yaml:"min,omitempty"`
	Max     time.Duration `yaml:"max,omitempty"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
}

// LoadConfig reads and parses an engine configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries cannot be negative", ErrInvalidConfig)
	}
	if c.Retry.RetryDelay < 0 {
		return fmt.Errorf("%w: retry_delay cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: max_redirects cannot be negative", ErrInvalidConfig)
	}
	if err := c.timeouts().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// timeouts resolves the configured timeout bounds with defaults filled in.
func (c *Config) timeouts() types.TimeoutConfig {
	tc := types.TimeoutConfig{
		Default: c.Timeouts.Default,
		Min:     c.Timeouts.Min,
		Max:     c.Timeouts.Max,
	}
	if tc.Default == 0 {
		tc.Default = types.DefaultTimeout
	}
	if tc.Min == 0 {
		tc.Min = types.MinTimeout
	}
	if tc.Max == 0 {
		tc.Max = types.MaxTimeout
	}
	return tc
}

// policy resolves the configured retry policy with defaults filled in.
func (c *Config) policy() pipeline.Policy {
	p := pipeline.DefaultPolicy()
	if c.Retry.MaxRetries > 0 {
		p.MaxRetries = c.Retry.MaxRetries
	}
	if c.Retry.RetryDelay > 0 {
		p.RetryDelay = c.Retry.RetryDelay
	}
	return p
}
