// Package base provides the shared plumbing protocol modules embed:
// metadata accessors, default token-lifecycle behavior, and dispatch
// through the execution pipeline.
package base

import (
	"context"
	"time"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/types"
)

// Module carries the state every protocol module shares. Concrete modules
// embed it and override the operations their protocol family needs.
type Module struct {
	Meta     protocol.Metadata
	Pipeline *pipeline.Client
}

// Metadata returns the module's static description.
func (m *Module) Metadata() protocol.Metadata {
	return m.Meta
}

// OptionalFields returns no fields by default.
func (m *Module) OptionalFields() []types.FieldDefinition {
	return nil
}

// TokenExpired reports stored-token expiry. Protocols without refresh
// support always report false and rely on the caller to re-authenticate
// out of band.
func (m *Module) TokenExpired(cred *types.Credential) bool {
	if !m.Meta.SupportsRefresh || cred == nil {
		return false
	}
	return cred.Token.Expired(time.Now())
}

// TokenExpiry returns the stored expiry instant, and false when none is
// known.
func (m *Module) TokenExpiry(cred *types.Credential) (time.Time, bool) {
	if cred == nil || cred.Token.ExpiresAt.IsZero() {
		return time.Time{}, false
	}
	return cred.Token.ExpiresAt, true
}

// Refresh is a no-op success for protocols without refresh support.
func (m *Module) Refresh(ctx context.Context, cred *types.Credential) error {
	return nil
}

// Revoke clears local token state and reports success. Modules for
// providers with a revocation endpoint override this with a best-effort
// remote revocation.
func (m *Module) Revoke(ctx context.Context, cred *types.Credential) error {
	if cred != nil {
		cred.Token = types.Token{}
		if cred.Status == types.StatusAuthenticated || cred.Status == types.StatusExpired {
			cred.Status = types.StatusConfiguring
		}
	}
	return nil
}

// Dispatch sends one execution context through the pipeline with the
// given injection.
func (m *Module) Dispatch(ctx context.Context, ec types.ExecutionContext, inj types.Injection) (types.ExecutionResult, error) {
	return m.Pipeline.Do(ctx, ec, inj)
}

// Probe issues a cheap GET against the given URL with the module's
// injection applied and derives a health report from the outcome. A 401
// or 403 marks the token invalid rather than the provider unreachable.
func (m *Module) Probe(ctx context.Context, url string, cred *types.Credential, inj types.Injection, tokenStatus types.TokenStatus) (types.HealthReport, error) {
	if url == "" {
		return types.HealthyReport(tokenStatus, 0, "no health endpoint configured"), nil
	}
	start := time.Now()
	res, err := m.Pipeline.Do(ctx, types.ExecutionContext{
		URL:        url,
		Method:     "GET",
		Credential: cred,
	}, inj)
	latency := time.Since(start)
	if err != nil {
		return types.UnhealthyReport(tokenStatus, latency, err.Error()), nil
	}
	switch {
	case res.Success:
		return types.HealthyReport(tokenStatus, latency, "probe succeeded"), nil
	case res.StatusCode == 401 || res.StatusCode == 403:
		return types.UnhealthyReport(types.TokenInvalid, latency, res.Error), nil
	default:
		return types.UnhealthyReport(tokenStatus, latency, res.Error), nil
	}
}
