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

// ProtocolPKCE is the registry discriminant for the PKCE module.
const ProtocolPKCE = "oauth-pkce"

// PKCE implements the OAuth authorization code grant with Proof Key for
// Code Exchange, for public clients that cannot hold a client secret. The
// code verifier generated in step one travels on the credential the
// caller owns, not on the module.
type PKCE struct {
	base.Module
}

// NewPKCE creates a PKCE module.
func NewPKCE(p *pipeline.Client) *PKCE {
	return &PKCE{base.Module{
		Meta: protocol.Metadata{
			Name:            ProtocolPKCE,
			DisplayName:     "OAuth 2.0 PKCE",
			Description:     "Authorization code with Proof Key for Code Exchange for public clients",
			SupportsRefresh: true,
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the public client registration and endpoints.
func (m *PKCE) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "clientId", Label: "Client ID", Kind: types.FieldText, Required: true},
		{ID: "authUrl", Label: "Authorization URL", Kind: types.FieldURL, Required: true},
		{ID: "tokenUrl", Label: "Token URL", Kind: types.FieldURL, Required: true},
		{ID: "redirectUri", Label: "Redirect URI", Kind: types.FieldURL, Required: true},
	}
}

// OptionalFields declares scope and endpoint extras.
func (m *PKCE) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "scope", Label: "Scopes", Kind: types.FieldText},
		{ID: "revocationUrl", Label: "Revocation URL", Kind: types.FieldURL},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate advances the two-step flow.
func (m *PKCE) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	switch step {
	case 1:
		return m.redirectStep(cred), nil
	default:
		return m.exchangeStep(ctx, cred, data), nil
	}
}

func (m *PKCE) redirectStep(cred *types.Credential) types.FlowStep {
	state := uuid.New().String()
	verifier := oauth2.GenerateVerifier()
	cred.SetField("oauthState", state)
	cred.SetField("codeVerifier", verifier)

	conf := &oauth2.Config{
		ClientID:    cred.Field("clientId"),
		RedirectURL: cred.Field("redirectUri"),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cred.Field("authUrl"),
			TokenURL: cred.Field("tokenUrl"),
		},
	}
	if scope := cred.Field("scope"); scope != "" {
		conf.Scopes = splitScopes(scope)
	}

	return types.FlowStep{
		Step:        1,
		TotalSteps:  2,
		Kind:        types.StepRedirect,
		Title:       "Authorize access",
		Description: "Open the authorization URL and grant access, then return with the authorization code.",
		Data: map[string]any{
			"authorization_url": conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
			"state":             state,
		},
	}
}

func (m *PKCE) exchangeStep(ctx context.Context, cred *types.Credential, data map[string]any) types.FlowStep {
	code, _ := data["code"].(string)
	if code == "" {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "authorization code missing from redirect data")
	}
	if state, _ := data["state"].(string); state != "" && state != cred.Field("oauthState") {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "state parameter mismatch")
	}
	verifier := cred.Field("codeVerifier")
	if verifier == "" {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "code verifier missing; restart the flow from step one")
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {cred.Field("redirectUri")},
		"client_id":     {cred.Field("clientId")},
		"code_verifier": {verifier},
	}
	tr, err := tokenRequest(ctx, m.Pipeline, ProtocolPKCE, "exchange", protoerr.CodeAuth, cred.Field("tokenUrl"), form)
	if err != nil {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, err.Error())
	}
	applyToken(cred, tr)
	delete(cred.Fields, "codeVerifier")

	fs := types.CompleteStep(2, 2, "Authorization complete")
	fs.Data = expiresInData(cred)
	return fs
}

// Inject attaches the stored bearer token.
func (m *PKCE) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return bearerInjection(ec.Credential), nil
}

// Execute dispatches the call under the stored bearer token.
func (m *PKCE) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Refresh runs the refresh_token grant.
func (m *PKCE) Refresh(ctx context.Context, cred *types.Credential) error {
	return refreshGrant(ctx, m.Pipeline, ProtocolPKCE, cred)
}

// Revoke revokes remotely when a revocation endpoint is configured, then
// clears local state.
func (m *PKCE) Revoke(ctx context.Context, cred *types.Credential) error {
	return revokeGrant(ctx, m.Pipeline, cred)
}

// Health probes the configured endpoint under the stored token.
func (m *PKCE) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, bearerInjection(cred), tokenStatusOf(cred))
}
