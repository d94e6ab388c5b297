package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/types"
)

func tokenServer(t *testing.T, wantForm map[string]string, resp map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		for k, want := range wantForm {
			if got := r.PostFormValue(k); got != want {
				t.Errorf("form[%s] = %q, want %q", k, got, want)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestAuthCodeRedirectStep(t *testing.T) {
	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields: map[string]any{
			"clientId":    "client-1",
			"authUrl":     "https://idp.example.com/authorize",
			"tokenUrl":    "https://idp.example.com/token",
			"redirectUri": "https://app.example.com/callback",
			"scope":       "read write",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepRedirect {
		t.Fatalf("kind = %s, want %s", fs.Kind, types.StepRedirect)
	}
	authURL, _ := fs.Data["authorization_url"].(string)
	state, _ := fs.Data["state"].(string)
	if state == "" {
		t.Fatal("redirect step carries no state")
	}
	if cred.Field("oauthState") != state {
		t.Errorf("stored state %q does not match step state %q", cred.Field("oauthState"), state)
	}
	for _, want := range []string{"client_id=client-1", "state=" + state, "response_type=code"} {
		if !strings.Contains(authURL, want) {
			t.Errorf("authorization_url %q missing %q", authURL, want)
		}
	}
}

func TestAuthCodeExchange(t *testing.T) {
	srv := tokenServer(t, map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"client_id":     "client-1",
		"client_secret": "s3cret",
	}, map[string]any{"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600})
	defer srv.Close()

	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields: map[string]any{
			"clientId":     "client-1",
			"clientSecret": "s3cret",
			"authUrl":      "https://idp.example.com/authorize",
			"tokenUrl":     srv.URL,
			"redirectUri":  "https://app.example.com/callback",
			"oauthState":   "st-1",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 2, map[string]any{
		"code":  "the-code",
		"state": "st-1",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepComplete {
		t.Fatalf("kind = %s (%v), want complete", fs.Kind, fs.Data)
	}
	if cred.Token.AccessToken != "at-1" || cred.Token.RefreshToken != "rt-1" {
		t.Errorf("token = %+v", cred.Token)
	}
	if cred.Token.ExpiresAt.IsZero() {
		t.Error("expires_in not converted into an absolute expiry")
	}
	if _, ok := fs.Data["expires_at"]; !ok {
		t.Error("complete step missing expires_at")
	}
}

func TestAuthCodeExchangeStateMismatch(t *testing.T) {
	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields:   map[string]any{"oauthState": "expected"},
	}

	fs, err := m.Authenticate(context.Background(), cred, 2, map[string]any{
		"code":  "the-code",
		"state": "tampered",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepError {
		t.Fatalf("kind = %s, want error", fs.Kind)
	}
	if fs.ErrorCode != protoerr.CodeAuth {
		t.Errorf("error code = %s, want %s", fs.ErrorCode, protoerr.CodeAuth)
	}
	if cred.Token.AccessToken != "" {
		t.Error("token applied despite state mismatch")
	}
}

func TestAuthCodeExchangeMissingCode(t *testing.T) {
	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{ID: "c1", Protocol: ProtocolAuthCode, Fields: map[string]any{}}

	fs, err := m.Authenticate(context.Background(), cred, 2, map[string]any{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepError || fs.ErrorCode != protoerr.CodeAuth {
		t.Errorf("step = %+v, want auth error", fs)
	}
}

func TestAuthCodeRefreshGrant(t *testing.T) {
	srv := tokenServer(t, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "rt-old",
		"client_id":     "client-1",
	}, map[string]any{"access_token": "at-new", "expires_in": 1800})
	defer srv.Close()

	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields: map[string]any{
			"clientId": "client-1",
			"tokenUrl": srv.URL,
		},
		Token: types.Token{AccessToken: "at-old", RefreshToken: "rt-old"},
	}

	if err := m.Refresh(context.Background(), cred); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if cred.Token.AccessToken != "at-new" {
		t.Errorf("access token = %q, want at-new", cred.Token.AccessToken)
	}
	// The provider issued no replacement, so the old refresh token survives.
	if cred.Token.RefreshToken != "rt-old" {
		t.Errorf("refresh token = %q, want rt-old", cred.Token.RefreshToken)
	}
}

func TestRefreshGrantWithoutStoredToken(t *testing.T) {
	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{ID: "c1", Protocol: ProtocolAuthCode, Fields: map[string]any{}}

	err := m.Refresh(context.Background(), cred)
	if err == nil {
		t.Fatal("Refresh succeeded with no refresh token stored")
	}
	if protoerr.CodeOf(err) != protoerr.CodeTokenRefreshFailed {
		t.Errorf("code = %s, want %s", protoerr.CodeOf(err), protoerr.CodeTokenRefreshFailed)
	}
}

func TestRefreshGrantProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}))
	defer srv.Close()

	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields:   map[string]any{"tokenUrl": srv.URL},
		Token:    types.Token{AccessToken: "at-old", RefreshToken: "rt-old"},
	}

	err := m.Refresh(context.Background(), cred)
	if err == nil {
		t.Fatal("Refresh succeeded against a rejecting endpoint")
	}
	if protoerr.CodeOf(err) != protoerr.CodeTokenRefreshFailed {
		t.Errorf("code = %s, want %s", protoerr.CodeOf(err), protoerr.CodeTokenRefreshFailed)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error %q does not carry the provider message", err)
	}
	if cred.Token.AccessToken != "at-old" {
		t.Error("stored token changed on a failed refresh")
	}
}

func TestPKCERedirectStoresVerifier(t *testing.T) {
	m := NewPKCE(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolPKCE,
		Fields: map[string]any{
			"clientId":    "client-1",
			"authUrl":     "https://idp.example.com/authorize",
			"tokenUrl":    "https://idp.example.com/token",
			"redirectUri": "https://app.example.com/callback",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.Field("codeVerifier") == "" {
		t.Fatal("verifier not stored on the credential")
	}
	authURL, _ := fs.Data["authorization_url"].(string)
	for _, want := range []string{"code_challenge=", "code_challenge_method=S256"} {
		if !strings.Contains(authURL, want) {
			t.Errorf("authorization_url %q missing %q", authURL, want)
		}
	}
}

func TestPKCEExchangeSendsVerifier(t *testing.T) {
	srv := tokenServer(t, map[string]string{
		"grant_type":    "authorization_code",
		"code":          "the-code",
		"code_verifier": "ver-1",
		"client_id":     "client-1",
	}, map[string]any{"access_token": "at-1", "expires_in": 900})
	defer srv.Close()

	m := NewPKCE(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolPKCE,
		Fields: map[string]any{
			"clientId":     "client-1",
			"tokenUrl":     srv.URL,
			"redirectUri":  "https://app.example.com/callback",
			"oauthState":   "st-1",
			"codeVerifier": "ver-1",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 2, map[string]any{
		"code":  "the-code",
		"state": "st-1",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepComplete {
		t.Fatalf("kind = %s (%v), want complete", fs.Kind, fs.Data)
	}
	if cred.Token.AccessToken != "at-1" {
		t.Errorf("access token = %q", cred.Token.AccessToken)
	}
	if _, ok := cred.Fields["codeVerifier"]; ok {
		t.Error("verifier survived the exchange")
	}
}

func TestPKCEExchangeWithoutVerifier(t *testing.T) {
	m := NewPKCE(pipeline.NewClient())
	cred := &types.Credential{ID: "c1", Protocol: ProtocolPKCE, Fields: map[string]any{}}

	fs, err := m.Authenticate(context.Background(), cred, 2, map[string]any{"code": "the-code"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepError || fs.ErrorCode != protoerr.CodeAuth {
		t.Errorf("step = %+v, want auth error", fs)
	}
}

func TestClientCredentialsAuthenticate(t *testing.T) {
	srv := tokenServer(t, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "svc-1",
		"client_secret": "s3cret",
		"scope":         "machines",
	}, map[string]any{"access_token": "at-1", "expires_in": 600})
	defer srv.Close()

	m := NewClientCredentials(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolClientCredentials,
		Fields: map[string]any{
			"clientId":     "svc-1",
			"clientSecret": "s3cret",
			"tokenUrl":     srv.URL,
			"scope":        "machines",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepComplete {
		t.Fatalf("kind = %s (%v), want complete", fs.Kind, fs.Data)
	}
	if cred.Token.AccessToken != "at-1" {
		t.Errorf("access token = %q", cred.Token.AccessToken)
	}
}

func TestClientCredentialsRefreshRerunsGrant(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = r.ParseForm()
		if got := r.PostFormValue("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","expires_in":600}`))
	}))
	defer srv.Close()

	m := NewClientCredentials(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolClientCredentials,
		Fields: map[string]any{
			"clientId":     "svc-1",
			"clientSecret": "s3cret",
			"tokenUrl":     srv.URL,
		},
		Token: types.Token{AccessToken: "at-1"},
	}

	if err := m.Refresh(context.Background(), cred); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if calls != 1 {
		t.Errorf("token endpoint calls = %d, want 1", calls)
	}
	if cred.Token.AccessToken != "at-2" {
		t.Errorf("access token = %q, want at-2", cred.Token.AccessToken)
	}
}

func TestClientCredentialsRefreshFailureCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	m := NewClientCredentials(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolClientCredentials,
		Fields:   map[string]any{"clientId": "svc-1", "clientSecret": "bad", "tokenUrl": srv.URL},
	}

	err := m.Refresh(context.Background(), cred)
	if err == nil {
		t.Fatal("Refresh succeeded against a rejecting endpoint")
	}
	if protoerr.CodeOf(err) != protoerr.CodeTokenRefreshFailed {
		t.Errorf("code = %s, want %s", protoerr.CodeOf(err), protoerr.CodeTokenRefreshFailed)
	}
}

func TestImplicitCapture(t *testing.T) {
	m := NewImplicit(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolImplicit,
		Fields: map[string]any{
			"clientId":    "client-1",
			"authUrl":     "https://idp.example.com/authorize",
			"redirectUri": "https://app.example.com/callback",
		},
	}

	fs, err := m.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("redirect step: %v", err)
	}
	authURL, _ := fs.Data["authorization_url"].(string)
	if !strings.Contains(authURL, "response_type=token") {
		t.Errorf("authorization_url %q missing response_type=token", authURL)
	}

	state, _ := fs.Data["state"].(string)
	fs, err = m.Authenticate(context.Background(), cred, 2, map[string]any{
		"access_token": "frag-token",
		"state":        state,
		"expires_in":   "120",
	})
	if err != nil {
		t.Fatalf("capture step: %v", err)
	}
	if fs.Kind != types.StepComplete {
		t.Fatalf("kind = %s, want complete", fs.Kind)
	}
	if cred.Token.AccessToken != "frag-token" {
		t.Errorf("access token = %q", cred.Token.AccessToken)
	}
	if cred.Token.ExpiresAt.IsZero() {
		t.Error("expires_in fragment value not converted")
	}
}

func TestRevokeGrantClearsState(t *testing.T) {
	revoked := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		revoked = true
		_ = r.ParseForm()
		if got := r.PostFormValue("token"); got != "at-1" {
			t.Errorf("revoked token = %q, want at-1", got)
		}
	}))
	defer srv.Close()

	m := NewAuthCode(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: ProtocolAuthCode,
		Fields:   map[string]any{"revocationUrl": srv.URL},
		Status:   types.StatusAuthenticated,
		Token:    types.Token{AccessToken: "at-1", RefreshToken: "rt-1"},
	}

	if err := m.Revoke(context.Background(), cred); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked {
		t.Error("revocation endpoint never called")
	}
	if !cred.Token.IsZero() {
		t.Errorf("token = %+v, want cleared", cred.Token)
	}
	if cred.Status != types.StatusConfiguring {
		t.Errorf("status = %s, want %s", cred.Status, types.StatusConfiguring)
	}
}

func TestSplitScopes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"read write", []string{"read", "write"}},
		{"read,write", []string{"read", "write"}},
		{"read, write", []string{"read", "write"}},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		got := splitScopes(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitScopes(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitScopes(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTokenStatusOf(t *testing.T) {
	tests := []struct {
		name string
		cred *types.Credential
		want types.TokenStatus
	}{
		{"nil credential", nil, types.TokenMissing},
		{"no token", &types.Credential{}, types.TokenMissing},
		{"expired", &types.Credential{Token: types.Token{
			AccessToken: "at",
			ExpiresAt:   time.Now().Add(-time.Minute),
		}}, types.TokenExpired},
		{"valid", &types.Credential{Token: types.Token{
			AccessToken: "at",
			ExpiresAt:   time.Now().Add(time.Hour),
		}}, types.TokenValid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenStatusOf(tt.cred); got != tt.want {
				t.Errorf("tokenStatusOf = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestTokenResponseDumpSafe verifies a decoded token response can be
// formatted or re-encoded without exposing the issued material; only
// Value() yields it.
func TestTokenResponseDumpSafe(t *testing.T) {
	raw := `{"access_token":"at-secret-1","refresh_token":"rt-secret-1","token_type":"Bearer","expires_in":3600}`
	var tr TokenResponse
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if tr.AccessToken.Value() != "at-secret-1" || tr.RefreshToken.Value() != "rt-secret-1" {
		t.Fatal("wrappers must hold the wire values")
	}

	dump := fmt.Sprintf("%v %+v", tr, tr)
	encoded, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, secret := range []string{"at-secret-1", "rt-secret-1"} {
		if strings.Contains(dump, secret) {
			t.Errorf("formatted response leaked %q: %s", secret, dump)
		}
		if strings.Contains(string(encoded), secret) {
			t.Errorf("re-encoded response leaked %q: %s", secret, encoded)
		}
	}
}
