// Package scrape implements the no-auth protocol module for plain HTTP
// endpoints: no credential material, no token lifecycle, just requests
// with an optional custom User-Agent.
package scrape

import (
	"context"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "scrape"

// DefaultUserAgent identifies unauthenticated requests when the caller
// configures no override.
const DefaultUserAgent = "handshake-scraper/1.0"

// Module performs unauthenticated HTTP requests.
type Module struct {
	base.Module
}

// New creates a no-auth scrape module.
func New(p *pipeline.Client) *Module {
	return &Module{base.Module{
		Meta: protocol.Metadata{
			Name:        Protocol,
			DisplayName: "No Authentication",
			Description: "Plain HTTP requests without credential material",
		},
		Pipeline: p,
	}}
}

// RequiredFields is empty: there is nothing to configure before use.
func (m *Module) RequiredFields() []types.FieldDefinition {
	return nil
}

func (m *Module) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "userAgent", Label: "User-Agent", Kind: types.FieldText, Default: DefaultUserAgent},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate completes immediately.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	return types.CompleteStep(1, 1, "Ready"), nil
}

func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	ua := ec.Credential.Field("userAgent")
	if ua == "" {
		ua = DefaultUserAgent
	}
	return types.Injection{Headers: map[string]string{"User-Agent": ua}}, nil
}

func (m *Module) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Health probes the configured endpoint, or reports healthy with no probe
// when none is set. Token status is always valid: there is no token to
// go stale.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	inj, _ := m.Inject(types.ExecutionContext{Credential: cred})
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, inj, types.TokenValid)
}
