// Package health evaluates whether a handshake's credentials are currently
// usable. The evaluation is read-mostly: it must not mutate token state
// except to apply a refresh that is already due, and it probes an endpoint
// with negligible cost to the provider's quota.
package health

import (
	"context"
	"time"

	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/token"
	"github.com/apilink-dev/handshake/types"
)

// Evaluator runs handshake health checks.
type Evaluator struct {
	tokens *token.Manager
}

// NewEvaluator creates a health evaluator sharing the engine's token
// lifecycle manager, so a due refresh applied during a check goes through
// the same per-credential critical section as normal calls.
func NewEvaluator(tokens *token.Manager) *Evaluator {
	return &Evaluator{tokens: tokens}
}

// Check probes the handshake and reports reachability and token status on
// independent axes: a provider can be reachable with invalid credentials,
// or unreachable while the stored token is perfectly valid.
func (e *Evaluator) Check(ctx context.Context, mod protocol.Module, cred *types.Credential) (types.HealthReport, error) {
	meta := mod.Metadata()
	start := time.Now()

	// Apply a due refresh before probing; this is the only token mutation
	// a health check may perform.
	if _, err := e.tokens.EnsureFresh(ctx, mod, cred); err != nil {
		report := types.UnhealthyReport(types.TokenExpired, time.Since(start), "token refresh failed: "+err.Error())
		report.CanRefresh = meta.SupportsRefresh
		return report, nil
	}

	report, err := mod.Health(ctx, cred)
	if err != nil {
		report = types.UnhealthyReport(e.tokens.Status(mod, cred), time.Since(start), err.Error())
	}
	if report.Latency == 0 {
		report.Latency = time.Since(start)
	}
	if report.CheckedAt.IsZero() {
		report.CheckedAt = time.Now()
	}
	report.CanRefresh = meta.SupportsRefresh
	return report, nil
}
