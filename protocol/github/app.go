// Package github implements the GitHub protocol modules: App installation
// tokens minted from an RS256-signed app JWT, and classic personal access
// tokens.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/redact"
	"github.com/apilink-dev/handshake/types"
)

// ProtocolApp is the registry discriminant for the GitHub App module.
const ProtocolApp = "github-app"

// DefaultAPIBaseURL is the public GitHub API root; GHES installs override
// it through the apiBaseUrl field.
const DefaultAPIBaseURL = "https://api.github.com"

// appJWTLifetime is the lifetime GitHub permits for app JWTs, minus
// nothing: the 10-minute ceiling is provider-enforced.
const appJWTLifetime = 10 * time.Minute

// App implements GitHub App authentication: an RS256-signed app JWT is
// exchanged for a short-lived installation token, and refresh simply
// mints a new one.
type App struct {
	base.Module
}

// NewApp creates a GitHub App module.
func NewApp(p *pipeline.Client) *App {
	return &App{base.Module{
		Meta: protocol.Metadata{
			Name:               ProtocolApp,
			DisplayName:        "GitHub App",
			Description:        "Installation tokens minted from an RS256-signed app JWT",
			SupportsRefresh:    true,
			RequiresServerSide: true,
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the app identity and signing key.
func (m *App) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "appId", Label: "App ID", Kind: types.FieldText, Required: true},
		{ID: "privateKey", Label: "Private Key (PEM)", Kind: types.FieldTextarea, Required: true},
		{ID: "installationId", Label: "Installation ID", Kind: types.FieldText, Required: true},
	}
}

// OptionalFields declares the API base override for GHES.
func (m *App) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "apiBaseUrl", Label: "API Base URL", Kind: types.FieldURL, Default: DefaultAPIBaseURL},
	}
}

// Authenticate is a single step: mint the installation token.
func (m *App) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if err := m.mintInstallationToken(ctx, cred); err != nil {
		return types.ErrorStep(1, 1, protoerr.CodeAuth, err.Error()), nil
	}
	fs := types.CompleteStep(1, 1, "Installation token issued")
	fs.Data = map[string]any{"expires_at": cred.Token.ExpiresAt.Format(time.RFC3339)}
	return fs, nil
}

// appJWT signs a short-lived RS256 JWT identifying the app. The issued-at
// claim is backdated sixty seconds to absorb clock drift against GitHub.
func (m *App) appJWT(cred *types.Credential) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cred.Field("privateKey")))
	if err != nil {
		return "", protoerr.New(ProtocolApp, "sign", protoerr.CodeValidation, "invalid RSA private key").WithCause(err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    cred.Field("appId"),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", protoerr.New(ProtocolApp, "sign", protoerr.CodeAuth, "app JWT signing failed").WithCause(err)
	}
	return signed, nil
}

// installationTokenResponse is the wire shape of the access_tokens
// endpoint. The token decodes into a redact wrapper so a dumped response
// never exposes it.
type installationTokenResponse struct {
	Token     redact.Token `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Message   string       `json:"message,omitempty"`
}

func (m *App) mintInstallationToken(ctx context.Context, cred *types.Credential) error {
	appJWT, err := m.appJWT(cred)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/app/installations/%s/access_tokens", m.baseURL(cred), cred.Field("installationId"))
	res, err := m.Pipeline.Do(ctx, types.ExecutionContext{
		URL:    endpoint,
		Method: "POST",
	}, types.Injection{Headers: map[string]string{
		"Authorization": "Bearer " + appJWT,
		"Accept":        "application/vnd.github+json",
	}})
	if err != nil {
		return err
	}

	var tr installationTokenResponse
	if res.RawBody != "" {
		_ = json.Unmarshal([]byte(res.RawBody), &tr)
	}
	if !res.Success {
		msg := tr.Message
		if msg == "" {
			msg = res.Error
		}
		return protoerr.New(ProtocolApp, "mint", protoerr.CodeAuth, msg).
			WithDetails(map[string]any{"status_code": res.StatusCode})
	}
	if tr.Token.IsEmpty() {
		return protoerr.New(ProtocolApp, "mint", protoerr.CodeParse, "access_tokens response carried no token")
	}

	cred.Token = types.Token{AccessToken: tr.Token.Value(), ExpiresAt: tr.ExpiresAt}
	return nil
}

func (m *App) baseURL(cred *types.Credential) string {
	if u := cred.Field("apiBaseUrl"); u != "" {
		return u
	}
	return DefaultAPIBaseURL
}

// Inject attaches the installation token.
func (m *App) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return types.Injection{Headers: map[string]string{
		"Authorization": "Bearer " + ec.Credential.Token.AccessToken,
		"Accept":        "application/vnd.github+json",
	}}, nil
}

// Execute dispatches the call under the installation token.
func (m *App) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Refresh mints a fresh installation token; failures surface as
// TOKEN_REFRESH_FAILED.
func (m *App) Refresh(ctx context.Context, cred *types.Credential) error {
	if err := m.mintInstallationToken(ctx, cred); err != nil {
		return protoerr.New(ProtocolApp, "refresh", protoerr.CodeTokenRefreshFailed, "installation token mint failed").WithCause(err)
	}
	return nil
}

// Health probes the rate limit endpoint, which does not consume request
// quota.
func (m *App) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	switch {
	case cred.Token.AccessToken == "":
		status = types.TokenMissing
	case cred.Token.Expired(time.Now()):
		status = types.TokenExpired
	}
	inj, _ := m.Inject(types.ExecutionContext{Credential: cred})
	return m.Probe(ctx, m.baseURL(cred)+"/rate_limit", cred, inj, status)
}
