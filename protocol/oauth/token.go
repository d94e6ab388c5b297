// Package oauth implements the OAuth protocol modules: authorization code,
// PKCE, client credentials, and the legacy implicit grant. The grant
// variants share one token-endpoint door: a form-encoded POST dispatched
// through the execution pipeline so that timeout, retry, and
// normalization discipline apply to token traffic too.
package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/redact"
	"github.com/apilink-dev/handshake/types"
)

// TokenResponse is the token endpoint wire shape shared by every grant.
// The token fields decode into redact wrappers so a dumped or logged
// response never exposes the issued material.
type TokenResponse struct {
	AccessToken      redact.Token `json:"access_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        int          `json:"expires_in,omitempty"`
	RefreshToken     redact.Token `json:"refresh_token"`
	Scope            string       `json:"scope,omitempty"`
	Error            string       `json:"error,omitempty"`
	ErrorDescription string       `json:"error_description,omitempty"`
}

// message renders the provider's error fields into one line.
func (t TokenResponse) message() string {
	switch {
	case t.Error != "" && t.ErrorDescription != "":
		return t.Error + ": " + t.ErrorDescription
	case t.Error != "":
		return t.Error
	default:
		return "token endpoint rejected the request"
	}
}

// tokenRequest POSTs a form to the token endpoint and decodes the
// response. Provider rejections come back as a structured error carrying
// the given taxonomy code.
func tokenRequest(ctx context.Context, p *pipeline.Client, proto, op, code, tokenURL string, form url.Values) (TokenResponse, error) {
	res, err := p.Do(ctx, types.ExecutionContext{
		URL:    tokenURL,
		Method: "POST",
		Body:   form.Encode(),
	}, types.Injection{
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
	})
	if err != nil {
		return TokenResponse{}, err
	}

	var tr TokenResponse
	if res.RawBody != "" {
		// Best effort: OAuth error bodies are JSON too.
		_ = json.Unmarshal([]byte(res.RawBody), &tr)
	}

	if !res.Success {
		return tr, protoerr.New(proto, op, code, tr.message()).
			WithDetails(map[string]any{"status_code": res.StatusCode})
	}
	if tr.AccessToken.IsEmpty() {
		return tr, protoerr.New(proto, op, protoerr.CodeParse, "token endpoint returned no access token")
	}
	return tr, nil
}

// applyToken writes the issued material to the credential in one
// assignment, converting expires_in to an absolute instant. An atomic
// update: either token and expiry both change, or neither does.
func applyToken(cred *types.Credential, tr TokenResponse) {
	next := types.Token{
		AccessToken:  tr.AccessToken.Value(),
		RefreshToken: tr.RefreshToken.Value(),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cred.Token.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		next.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	cred.Token = next
}

// refreshGrant runs the refresh_token grant and applies the result.
func refreshGrant(ctx context.Context, p *pipeline.Client, proto string, cred *types.Credential) error {
	if cred.Token.RefreshToken == "" {
		return protoerr.New(proto, "refresh", protoerr.CodeTokenRefreshFailed, "no refresh token stored")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.Token.RefreshToken},
	}
	if id := cred.Field("clientId"); id != "" {
		form.Set("client_id", id)
	}
	if secret := cred.Field("clientSecret"); secret != "" {
		form.Set("client_secret", secret)
	}
	tr, err := tokenRequest(ctx, p, proto, "refresh", protoerr.CodeTokenRefreshFailed, cred.Field("tokenUrl"), form)
	if err != nil {
		return err
	}
	applyToken(cred, tr)
	return nil
}

// revokeGrant POSTs the access token to the configured revocation
// endpoint, then clears local state. Providers without a revocation
// endpoint get the local clear only, reported as success.
func revokeGrant(ctx context.Context, p *pipeline.Client, cred *types.Credential) error {
	if endpoint := cred.Field("revocationUrl"); endpoint != "" && cred.Token.AccessToken != "" {
		form := url.Values{"token": {cred.Token.AccessToken}}
		if id := cred.Field("clientId"); id != "" {
			form.Set("client_id", id)
		}
		// Best effort: a failed remote revocation still clears local state.
		_, _ = p.Do(ctx, types.ExecutionContext{
			URL:    endpoint,
			Method: "POST",
			Body:   form.Encode(),
		}, types.Injection{
			Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		})
	}
	cred.Token = types.Token{}
	if cred.Status == types.StatusAuthenticated || cred.Status == types.StatusExpired {
		cred.Status = types.StatusConfiguring
	}
	return nil
}

// bearerInjection returns the standard bearer header for the stored
// access token.
func bearerInjection(cred *types.Credential) types.Injection {
	return types.Injection{Headers: map[string]string{
		"Authorization": "Bearer " + cred.Token.AccessToken,
	}}
}

// tokenStatusOf classifies the stored token for health reporting.
func tokenStatusOf(cred *types.Credential) types.TokenStatus {
	switch {
	case cred == nil || cred.Token.AccessToken == "":
		return types.TokenMissing
	case cred.Token.Expired(time.Now()):
		return types.TokenExpired
	default:
		return types.TokenValid
	}
}

// splitScopes splits a space- or comma-separated scope field.
func splitScopes(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
	return fields
}

// expiresInData renders the issued expiry for the completing flow step.
func expiresInData(cred *types.Credential) map[string]any {
	data := map[string]any{}
	if !cred.Token.ExpiresAt.IsZero() {
		data["expires_at"] = cred.Token.ExpiresAt.Format(time.RFC3339)
		data["expires_in"] = strconv.Itoa(int(time.Until(cred.Token.ExpiresAt) / time.Second))
	}
	return data
}
