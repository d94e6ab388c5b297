package handshake

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/apilink-dev/handshake/flow"
	"github.com/apilink-dev/handshake/health"
	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/token"
	"github.com/apilink-dev/handshake/types"
)

// Engine is the main entry point for driving authentication handshakes and
// authenticated calls against third-party providers.
//
// The Engine coordinates between:
//   - Protocol modules: pluggable handshake implementations behind one contract
//   - The flow runner: multi-step authentication with state machine enforcement
//   - The token manager: refresh-before-call with per-credential serialization
//   - The execution pipeline: substitution, timeout, retry, and normalization
type Engine interface {
	// Authentication

	// Authenticate advances the credential's authentication flow by one
	// step. Step indices are one-based; data carries provider-returned
	// values such as an authorization code. Validation failures surface as
	// a terminal error step without contacting the provider.
	Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error)

	// Execution

	// Execute performs one authenticated call. Expired tokens are
	// refreshed before dispatch; a failed refresh fails the call rather
	// than proceeding with a stale token.
	Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error)

	// Token lifecycle

	// Refresh forces a token refresh for the credential regardless of
	// expiry. Protocols without refresh support return nil unchanged.
	Refresh(ctx context.Context, cred *types.Credential) error

	// Revoke invalidates the credential's tokens, remotely where the
	// protocol supports it and locally always.
	Revoke(ctx context.Context, cred *types.Credential) error

	// Health

	// Health evaluates whether the credential is currently usable,
	// reporting provider reachability and token status on independent
	// axes.
	Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error)

	// Registry access

	// Protocols returns the protocol module registry.
	Protocols() *protocol.Registry
}

// defaultEngine is the concrete implementation of Engine.
type defaultEngine struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	registry  *protocol.Registry
	pipeline  *pipeline.Client
	flows     *flow.Runner
	tokens    *token.Manager
	evaluator *health.Evaluator
}

// Authenticate advances the credential's flow by one step.
func (e *defaultEngine) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	mod, err := e.module(ctx, cred)
	if err != nil {
		return types.FlowStep{}, err
	}

	fs, err := e.flows.Advance(ctx, mod, cred, step, data)
	if err != nil {
		return fs, err
	}

	e.logger.Info("authentication step completed",
		slog.String("credential_id", cred.ID),
		slog.String("protocol", cred.Protocol),
		slog.Int("step", fs.Step),
		slog.String("kind", string(fs.Kind)),
	)
	return fs, nil
}

// Execute performs one authenticated call through the credential's
// protocol module.
func (e *defaultEngine) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "handshake.execute")
		defer span.End()
	}

	mod, err := e.module(ctx, ec.Credential)
	if err != nil {
		return types.ExecutionResult{}, err
	}

	start := time.Now()
	refreshed, err := e.tokens.EnsureFresh(ctx, mod, ec.Credential)
	if err != nil {
		e.logger.Warn("token refresh failed, call aborted",
			slog.String("credential_id", ec.Credential.ID),
			slog.String("protocol", ec.Credential.Protocol),
			slog.String("error", err.Error()),
		)
		return types.ExecutionResult{
			Success:   false,
			ErrorCode: protoerr.CodeTokenRefreshFailed,
			Error:     err.Error(),
			Duration:  time.Since(start),
		}, nil
	}

	res, err := mod.Execute(ctx, ec)
	res.CredentialsRefreshed = refreshed
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res, err
}

// Refresh forces a token refresh regardless of expiry.
func (e *defaultEngine) Refresh(ctx context.Context, cred *types.Credential) error {
	mod, err := e.module(ctx, cred)
	if err != nil {
		return err
	}
	if !mod.Metadata().SupportsRefresh {
		return nil
	}
	if err := mod.Refresh(ctx, cred); err != nil {
		return &EngineError{Op: "Engine.Refresh", Kind: KindToken, Err: err,
			Context: map[string]any{"credential_id": cred.ID}}
	}
	e.logger.Info("token refreshed",
		slog.String("credential_id", cred.ID),
		slog.String("protocol", cred.Protocol),
	)
	return nil
}

// Revoke invalidates the credential's tokens.
func (e *defaultEngine) Revoke(ctx context.Context, cred *types.Credential) error {
	mod, err := e.module(ctx, cred)
	if err != nil {
		return err
	}
	if err := mod.Revoke(ctx, cred); err != nil {
		return &EngineError{Op: "Engine.Revoke", Kind: KindToken, Err: err,
			Context: map[string]any{"credential_id": cred.ID}}
	}
	e.logger.Info("credential revoked",
		slog.String("credential_id", cred.ID),
		slog.String("protocol", cred.Protocol),
	)
	return nil
}

// Health evaluates the credential.
func (e *defaultEngine) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	mod, err := e.module(ctx, cred)
	if err != nil {
		return types.HealthReport{}, err
	}
	return e.evaluator.Check(ctx, mod, cred)
}

// Protocols returns the module registry.
func (e *defaultEngine) Protocols() *protocol.Registry {
	return e.registry
}

// module resolves the credential's protocol module.
func (e *defaultEngine) module(ctx context.Context, cred *types.Credential) (protocol.Module, error) {
	if cred == nil {
		return nil, &EngineError{Op: "Engine.module", Kind: KindValidation, Err: ErrNilCredential}
	}
	mod, err := e.registry.Get(cred.Protocol)
	if err != nil {
		return nil, &EngineError{Op: "Engine.module", Kind: KindNotFound, Err: ErrProtocolNotFound,
			Context: map[string]any{"protocol": cred.Protocol}}
	}
	return mod, nil
}
