package oauth

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// ProtocolImplicit is the registry discriminant for the implicit grant
// module.
const ProtocolImplicit = "oauth-implicit"

// Implicit implements the legacy OAuth implicit grant. The grant is
// deprecated upstream: the token arrives in the redirect fragment, there
// is no refresh token, and callers re-authenticate when it expires.
type Implicit struct {
	base.Module
}

// NewImplicit creates an implicit grant module.
func NewImplicit(p *pipeline.Client) *Implicit {
	return &Implicit{base.Module{
		Meta: protocol.Metadata{
			Name:        ProtocolImplicit,
			DisplayName: "OAuth 2.0 Implicit (legacy)",
			Description: "Legacy implicit grant; tokens arrive in the redirect fragment and cannot be refreshed",
			Deprecated:  true,
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the public client registration.
func (m *Implicit) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "clientId", Label: "Client ID", Kind: types.FieldText, Required: true},
		{ID: "authUrl", Label: "Authorization URL", Kind: types.FieldURL, Required: true},
		{ID: "redirectUri", Label: "Redirect URI", Kind: types.FieldURL, Required: true},
	}
}

// OptionalFields declares scope and probe extras.
func (m *Implicit) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "scope", Label: "Scopes", Kind: types.FieldText},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate advances the two-step flow: redirect, then capture of the
// fragment token the caller extracted.
func (m *Implicit) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if step <= 1 {
		return m.redirectStep(cred)
	}
	return m.captureStep(cred, data)
}

func (m *Implicit) redirectStep(cred *types.Credential) (types.FlowStep, error) {
	authURL, err := url.Parse(cred.Field("authUrl"))
	if err != nil {
		return types.ErrorStep(1, 2, protoerr.CodeValidation, "invalid authorization URL"), nil
	}
	state := uuid.New().String()
	cred.SetField("oauthState", state)

	q := authURL.Query()
	q.Set("response_type", "token")
	q.Set("client_id", cred.Field("clientId"))
	q.Set("redirect_uri", cred.Field("redirectUri"))
	q.Set("state", state)
	if scope := cred.Field("scope"); scope != "" {
		q.Set("scope", scope)
	}
	authURL.RawQuery = q.Encode()

	return types.FlowStep{
		Step:        1,
		TotalSteps:  2,
		Kind:        types.StepRedirect,
		Title:       "Authorize access",
		Description: "Open the authorization URL; the access token arrives in the redirect fragment.",
		Data: map[string]any{
			"authorization_url": authURL.String(),
			"state":             state,
		},
	}, nil
}

func (m *Implicit) captureStep(cred *types.Credential, data map[string]any) (types.FlowStep, error) {
	accessToken, _ := data["access_token"].(string)
	if accessToken == "" {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "access token missing from fragment data"), nil
	}
	if state, _ := data["state"].(string); state != "" && state != cred.Field("oauthState") {
		return types.ErrorStep(2, 2, protoerr.CodeAuth, "state parameter mismatch"), nil
	}

	next := types.Token{AccessToken: accessToken}
	if raw, ok := data["expires_in"].(string); ok {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			next.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	cred.Token = next

	fs := types.CompleteStep(2, 2, "Authorization complete")
	fs.Data = expiresInData(cred)
	return fs, nil
}

// Inject attaches the stored bearer token.
func (m *Implicit) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return bearerInjection(ec.Credential), nil
}

// Execute dispatches the call under the stored bearer token.
func (m *Implicit) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Health probes the configured endpoint under the stored token.
func (m *Implicit) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, bearerInjection(cred), tokenStatusOf(cred))
}
