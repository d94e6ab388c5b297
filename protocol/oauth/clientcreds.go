package oauth

import (
	"context"
	"net/url"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// ProtocolClientCredentials is the registry discriminant for the client
// credentials module.
const ProtocolClientCredentials = "oauth-client-credentials"

// ClientCredentials implements the OAuth client credentials grant for
// machine-to-machine handshakes. Refresh re-runs the grant: the token
// endpoint issues no refresh token for this flow.
type ClientCredentials struct {
	base.Module
}

// NewClientCredentials creates a client credentials module.
func NewClientCredentials(p *pipeline.Client) *ClientCredentials {
	return &ClientCredentials{base.Module{
		Meta: protocol.Metadata{
			Name:               ProtocolClientCredentials,
			DisplayName:        "OAuth 2.0 Client Credentials",
			Description:        "Machine-to-machine grant using the client registration itself",
			SupportsRefresh:    true,
			RequiresServerSide: true,
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the client registration and token endpoint.
func (m *ClientCredentials) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "clientId", Label: "Client ID", Kind: types.FieldText, Required: true},
		{ID: "clientSecret", Label: "Client Secret", Kind: types.FieldSecret, Required: true},
		{ID: "tokenUrl", Label: "Token URL", Kind: types.FieldURL, Required: true},
	}
}

// OptionalFields declares scope and probe extras.
func (m *ClientCredentials) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "scope", Label: "Scopes", Kind: types.FieldText},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate is a single step: the grant needs no operator round trip.
func (m *ClientCredentials) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if err := m.grant(ctx, cred); err != nil {
		return types.ErrorStep(1, 1, protoerr.CodeAuth, err.Error()), nil
	}
	fs := types.CompleteStep(1, 1, "Token issued")
	fs.Data = expiresInData(cred)
	return fs, nil
}

// grant runs the client_credentials grant and applies the result.
func (m *ClientCredentials) grant(ctx context.Context, cred *types.Credential) error {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {cred.Field("clientId")},
		"client_secret": {cred.Field("clientSecret")},
	}
	if scope := cred.Field("scope"); scope != "" {
		form.Set("scope", scope)
	}
	tr, err := tokenRequest(ctx, m.Pipeline, ProtocolClientCredentials, "grant", protoerr.CodeAuth, cred.Field("tokenUrl"), form)
	if err != nil {
		return err
	}
	applyToken(cred, tr)
	return nil
}

// Inject attaches the stored bearer token.
func (m *ClientCredentials) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return bearerInjection(ec.Credential), nil
}

// Execute dispatches the call under the stored bearer token.
func (m *ClientCredentials) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Refresh re-runs the grant; failures surface as TOKEN_REFRESH_FAILED so
// calls fail fast instead of proceeding with a stale token.
func (m *ClientCredentials) Refresh(ctx context.Context, cred *types.Credential) error {
	if err := m.grant(ctx, cred); err != nil {
		return protoerr.New(ProtocolClientCredentials, "refresh", protoerr.CodeTokenRefreshFailed, "client credentials grant failed").WithCause(err)
	}
	return nil
}

// Health probes the configured endpoint under the stored token.
func (m *ClientCredentials) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, bearerInjection(cred), tokenStatusOf(cred))
}
