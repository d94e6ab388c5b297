package github

import (
	"context"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// ProtocolPAT is the registry discriminant for the classic token module.
const ProtocolPAT = "github-pat"

// PAT implements classic personal access token authentication. PATs have
// no expiry signal on the wire, so the module never reports expiry and
// Refresh is the inherited no-op.
type PAT struct {
	base.Module
}

// NewPAT creates a GitHub personal access token module.
func NewPAT(p *pipeline.Client) *PAT {
	return &PAT{base.Module{
		Meta: protocol.Metadata{
			Name:        ProtocolPAT,
			DisplayName: "GitHub Personal Access Token",
			Description: "Classic personal access token sent as a bearer header",
		},
		Pipeline: p,
	}}
}

func (m *PAT) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "token", Label: "Personal Access Token", Kind: types.FieldSecret, Required: true},
	}
}

func (m *PAT) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "apiBaseUrl", Label: "API Base URL", Kind: types.FieldURL, Default: DefaultAPIBaseURL},
	}
}

// Authenticate completes locally: the token is supplied, not negotiated.
func (m *PAT) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	cred.Token = types.Token{AccessToken: cred.Field("token")}
	return types.CompleteStep(1, 1, "Token stored"), nil
}

func (m *PAT) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return types.Injection{Headers: map[string]string{
		"Authorization": "Bearer " + ec.Credential.Field("token"),
		"Accept":        "application/vnd.github+json",
	}}, nil
}

func (m *PAT) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

func (m *PAT) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	if cred.Field("token") == "" {
		status = types.TokenMissing
	}
	base := cred.Field("apiBaseUrl")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	inj, _ := m.Inject(types.ExecutionContext{Credential: cred})
	return m.Probe(ctx, base+"/rate_limit", cred, inj, status)
}
