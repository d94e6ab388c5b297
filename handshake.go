package handshake

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/apilink-dev/handshake/flow"
	"github.com/apilink-dev/handshake/health"
	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/apikey"
	"github.com/apilink-dev/handshake/protocol/command"
	"github.com/apilink-dev/handshake/protocol/github"
	"github.com/apilink-dev/handshake/protocol/graphql"
	"github.com/apilink-dev/handshake/protocol/oauth"
	"github.com/apilink-dev/handshake/protocol/scrape"
	"github.com/apilink-dev/handshake/protocol/soap"
	"github.com/apilink-dev/handshake/protocol/websocket"
	"github.com/apilink-dev/handshake/token"
)

// NewEngine creates a new handshake engine instance with the default
// protocol modules registered.
//
// Example:
//
//	engine, err := handshake.NewEngine(
//	    handshake.WithLogger(logger),
//	    handshake.WithTimeouts(types.TimeoutConfig{Default: 10 * time.Second}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewEngine(opts ...EngineOption) (Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	client := pipeline.NewClient(pipelineOptions(cfg)...)

	registry := protocol.NewRegistry()
	if !cfg.skipDefaults {
		if err := registerDefaults(registry, client); err != nil {
			return nil, err
		}
	}

	tokens := token.NewManager()
	e := &defaultEngine{
		logger:    cfg.logger,
		tracer:    cfg.tracer,
		registry:  registry,
		pipeline:  client,
		flows:     flow.NewRunner(),
		tokens:    tokens,
		evaluator: health.NewEvaluator(tokens),
	}
	return e, nil
}

// pipelineOptions resolves pipeline configuration from the option set,
// with explicit options overriding file-sourced values.
func pipelineOptions(cfg *engineConfig) []pipeline.Option {
	var out []pipeline.Option
	out = append(out, pipeline.WithLogger(cfg.logger))

	if cfg.config != nil {
		out = append(out,
			pipeline.WithPolicy(cfg.config.policy()),
			pipeline.WithTimeouts(cfg.config.timeouts()),
		)
		if cfg.config.MaxRedirects > 0 {
			out = append(out, pipeline.WithMaxRedirects(cfg.config.MaxRedirects))
		}
	}
	if cfg.httpClient != nil {
		out = append(out, pipeline.WithHTTPClient(cfg.httpClient))
	}
	if cfg.policy != nil {
		out = append(out, pipeline.WithPolicy(*cfg.policy))
	}
	if cfg.timeouts != nil {
		out = append(out, pipeline.WithTimeouts(*cfg.timeouts))
	}
	if cfg.maxRedirects > 0 {
		out = append(out, pipeline.WithMaxRedirects(cfg.maxRedirects))
	}
	if cfg.tracer != nil {
		out = append(out, pipeline.WithTracer(cfg.tracer))
	}
	if cfg.meter != nil {
		out = append(out, pipeline.WithMeter(cfg.meter))
	}
	return out
}

// registerDefaults registers every built-in protocol module.
func registerDefaults(r *protocol.Registry, client *pipeline.Client) error {
	modules := []protocol.Module{
		apikey.New(client),
		oauth.NewAuthCode(client),
		oauth.NewPKCE(client),
		oauth.NewImplicit(client),
		oauth.NewClientCredentials(client),
		github.NewApp(client),
		github.NewPAT(client),
		command.New(client),
		soap.New(client),
		graphql.New(client),
		websocket.New(client),
		scrape.New(client),
	}
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return fmt.Errorf("registering default protocols: %w", err)
		}
	}
	return nil
}
