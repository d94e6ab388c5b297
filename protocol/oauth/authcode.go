package oauth

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// ProtocolAuthCode is the registry discriminant for the authorization
// code module.
const ProtocolAuthCode = "oauth-auth-code"

// AuthCode implements the OAuth authorization code grant for confidential
// clients. The flow is two steps: a redirect handing the authorization
// URL to the caller, then a code exchange with provider-returned data
// merged into the second Authenticate call.
type AuthCode struct {
	base.Module
}

// NewAuthCode creates an authorization-code module.
func NewAuthCode(p *pipeline.Client) *AuthCode {
	return &AuthCode{base.Module{
		Meta: protocol.Metadata{
			Name:               ProtocolAuthCode,
			DisplayName:        "OAuth 2.0 Authorization Code",
			Description:        "Three-legged OAuth for confidential clients",
			SupportsRefresh:    true,
			SupportsRevocation: true,
			RequiresServerSide: true,
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the client registration and endpoints.
func (m *AuthCode) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "clientId", Label: "Client ID", Kind: types.FieldText, Required: true},
		{ID: "clientSecret", Label: "Client Secret", Kind: types.FieldSecret, Required: true},
		{ID: "authUrl", Label: "Authorization URL", Kind: types.FieldURL, Required: true},
		{ID: "tokenUrl", Label: "Token URL", Kind: types.FieldURL, Required: true},
		{ID: "redirectUri", Label: "Redirect URI", Kind: types.FieldURL, Required: true},
	}
}

// OptionalFields declares scope and endpoint extras.
func (m *AuthCode) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "scope", Label: "Scopes", Kind: types.FieldText},
		{ID: "revocationUrl", Label: "Revocation URL", Kind: types.FieldURL},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate advances the two-step flow.
func (m *AuthCode) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	switch step {
	case 1:
		return m.redirectStep(cred), nil
	default:
		return m.exchangeStep(ctx, cred, data), nil
	}
}

func (m *AuthCode) redirectStep(cred *types.Credential) types.FlowStep {
	state := uuid.New().String()
	cred.SetField("oauthState", state)

	conf := m.oauthConfig(cred)
	return types.FlowStep{
		Step:        1,
		TotalSteps:  2,
		Kind:        types.StepRedirect,
		Title:       "Authorize access",
		Description: "Open the authorization URL and grant access, then return with the authorization code.",
		Data: map[string]any{
			"authorization_url": conf.AuthCodeURL(state, oauth2.AccessTypeOffline),
			"state":             state,
		},
	}
}

func (m *AuthCode) exchangeStep(ctx context.Context, cred *types.Credential, data map[string]any) types.FlowStep {
	code, _ := data["code"].(string)
	if code == "" {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "authorization code missing from redirect data")
	}
	if state, _ := data["state"].(string); state != "" && state != cred.Field("oauthState") {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "state parameter mismatch")
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {cred.Field("redirectUri")},
		"client_id":     {cred.Field("clientId")},
		"client_secret": {cred.Field("clientSecret")},
	}
	tr, err := tokenRequest(ctx, m.Pipeline, ProtocolAuthCode, "exchange", protoerr.CodeAuth, cred.Field("tokenUrl"), form)
	if err != nil {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, err.Error())
	}
	applyToken(cred, tr)

	fs := types.CompleteStep(2, 2, "Authorization complete")
	fs.Data = expiresInData(cred)
	return fs
}

func (m *AuthCode) oauthConfig(cred *types.Credential) *oauth2.Config {
	conf := &oauth2.Config{
		ClientID:     cred.Field("clientId"),
		ClientSecret: cred.Field("clientSecret"),
		RedirectURL:  cred.Field("redirectUri"),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cred.Field("authUrl"),
			TokenURL: cred.Field("tokenUrl"),
		},
	}
	if scope := cred.Field("scope"); scope != "" {
		conf.Scopes = splitScopes(scope)
	}
	return conf
}

// Inject attaches the stored bearer token.
func (m *AuthCode) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return bearerInjection(ec.Credential), nil
}

// Execute dispatches the call under the stored bearer token.
func (m *AuthCode) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Refresh runs the refresh_token grant.
func (m *AuthCode) Refresh(ctx context.Context, cred *types.Credential) error {
	return refreshGrant(ctx, m.Pipeline, ProtocolAuthCode, cred)
}

// Revoke revokes remotely when a revocation endpoint is configured, then
// clears local state.
func (m *AuthCode) Revoke(ctx context.Context, cred *types.Credential) error {
	return revokeGrant(ctx, m.Pipeline, cred)
}

// Health probes the configured endpoint under the stored token.
func (m *AuthCode) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, bearerInjection(cred), tokenStatusOf(cred))
}
