package handshake

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/types"
)

// EngineOption configures the Engine.
type EngineOption func(*engineConfig)

// engineConfig holds configuration for the Engine instance.
type engineConfig struct {
	config         *Config
	logger         *slog.Logger
	tracer         trace.Tracer
	meter          metric.Meter
	httpClient     *http.Client
	policy         *pipeline.Policy
	timeouts       *types.TimeoutConfig
	maxRedirects   int
	skipDefaults   bool
}

// WithConfig applies settings from a loaded configuration file. Explicit
// options given alongside it take precedence over the file's values.
func WithConfig(cfg *Config) EngineOption {
	return func(c *engineConfig) {
		c.config = cfg
	}
}

// WithLogger sets a custom logger for the engine.
// If not provided, a default JSON logger writing to stdout is created.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for distributed tracing.
// This enables observability across engine operations and dispatches.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(c *engineConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for dispatch and retry counters.
func WithMeter(meter metric.Meter) EngineOption {
	return func(c *engineConfig) {
		c.meter = meter
	}
}

// WithHTTPClient sets the http.Client backing the execution pipeline.
// Tests use this to inject stub transports.
func WithHTTPClient(hc *http.Client) EngineOption {
	return func(c *engineConfig) {
		c.httpClient = hc
	}
}

// WithRetryPolicy overrides the pipeline retry policy.
func WithRetryPolicy(p pipeline.Policy) EngineOption {
	return func(c *engineConfig) {
		c.policy = &p
	}
}

// WithTimeouts overrides the execution timeout bounds.
func WithTimeouts(tc types.TimeoutConfig) EngineOption {
	return func(c *engineConfig) {
		c.timeouts = &tc
	}
}

// WithMaxRedirects caps redirect following per call.
func WithMaxRedirects(n int) EngineOption {
	return func(c *engineConfig) {
		c.maxRedirects = n
	}
}

// WithoutDefaultProtocols creates the engine with an empty registry.
// Callers then register exactly the modules they want.
func WithoutDefaultProtocols() EngineOption {
	return func(c *engineConfig) {
		c.skipDefaults = true
	}
}
