package handshake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/apikey"
	"github.com/apilink-dev/handshake/types"
)

func newTestEngine(t *testing.T, opts ...EngineOption) Engine {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineRegistersDefaults(t *testing.T) {
	e := newTestEngine(t)

	want := []string{
		"api-key",
		"curl-default",
		"github-app",
		"github-pat",
		"graphql",
		"oauth-auth-code",
		"oauth-client-credentials",
		"oauth-implicit",
		"oauth-pkce",
		"scrape",
		"soap",
		"websocket",
	}
	got := e.Protocols().List()
	if len(got) != len(want) {
		t.Fatalf("List() = %d protocols, want %d: %v", len(got), len(want), got)
	}
	for i, d := range got {
		if d.Metadata.Name != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, d.Metadata.Name, want[i])
		}
	}
}

func TestWithoutDefaultProtocols(t *testing.T) {
	e := newTestEngine(t, WithoutDefaultProtocols())
	if got := e.Protocols().List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestAuthenticateAndExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "k-1" {
			t.Errorf("X-API-Key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	cred := &types.Credential{
		ID:       "c1",
		Protocol: apikey.Protocol,
		Fields:   map[string]any{"apiKey": "k-1"},
	}

	fs, err := e.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepComplete {
		t.Fatalf("kind = %s, want complete", fs.Kind)
	}
	if cred.Status != types.StatusAuthenticated {
		t.Fatalf("status = %s, want %s", cred.Status, types.StatusAuthenticated)
	}

	res, err := e.Execute(context.Background(), types.ExecutionContext{
		URL:        srv.URL,
		Credential: cred,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.CredentialsRefreshed {
		t.Error("refresh reported for a protocol without refresh support")
	}
}

func TestAuthenticateValidationFailure(t *testing.T) {
	e := newTestEngine(t)
	cred := &types.Credential{
		ID:       "c1",
		Protocol: apikey.Protocol,
		Fields:   map[string]any{},
	}

	fs, err := e.Authenticate(context.Background(), cred, 1, nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fs.Kind != types.StepError || fs.ErrorCode != protoerr.CodeValidation {
		t.Errorf("step = %+v, want validation error", fs)
	}
	if cred.Status != types.StatusError {
		t.Errorf("status = %s, want %s", cred.Status, types.StatusError)
	}
}

func TestExecuteUnknownProtocol(t *testing.T) {
	e := newTestEngine(t)
	cred := &types.Credential{ID: "c1", Protocol: "telepathy"}

	_, err := e.Execute(context.Background(), types.ExecutionContext{Credential: cred})
	if err == nil {
		t.Fatal("Execute succeeded for an unregistered protocol")
	}
	if !errors.Is(err, ErrProtocolNotFound) {
		t.Errorf("error %v does not match ErrProtocolNotFound", err)
	}
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("error %T is not an EngineError", err)
	}
	if ee.Kind != KindNotFound {
		t.Errorf("kind = %s, want %s", ee.Kind, KindNotFound)
	}
}

func TestExecuteNilCredential(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(context.Background(), types.ExecutionContext{})
	if err == nil {
		t.Fatal("Execute succeeded with no credential")
	}
	if !errors.Is(err, ErrNilCredential) {
		t.Errorf("error %v does not match ErrNilCredential", err)
	}
}

// refusingModule always fails refresh; used to verify fail-fast.
type refusingModule struct {
	*apikey.Module
}

func (m *refusingModule) Metadata() protocol.Metadata {
	meta := m.Module.Metadata()
	meta.Name = "refusing"
	meta.SupportsRefresh = true
	return meta
}

func (m *refusingModule) TokenExpired(cred *types.Credential) bool { return true }

func (m *refusingModule) Refresh(ctx context.Context, cred *types.Credential) error {
	return protoerr.New("refusing", "refresh", protoerr.CodeTokenRefreshFailed, "provider said no")
}

func TestExecuteFailsFastOnRefreshFailure(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	e := newTestEngine(t, WithoutDefaultProtocols())
	if err := e.Protocols().Register(&refusingModule{Module: apikey.New(nil)}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cred := &types.Credential{
		ID:       "c1",
		Protocol: "refusing",
		Fields:   map[string]any{"apiKey": "k-1"},
		Status:   types.StatusAuthenticated,
		Token:    types.Token{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
	}

	res, err := e.Execute(context.Background(), types.ExecutionContext{
		URL:        srv.URL,
		Credential: cred,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success {
		t.Fatal("call succeeded despite the failed refresh")
	}
	if res.ErrorCode != protoerr.CodeTokenRefreshFailed {
		t.Errorf("error code = %s, want %s", res.ErrorCode, protoerr.CodeTokenRefreshFailed)
	}
	if hits != 0 {
		t.Errorf("server hits = %d, want 0", hits)
	}
}

func TestRefreshSkipsUnsupportedProtocols(t *testing.T) {
	e := newTestEngine(t)
	cred := &types.Credential{
		ID:       "c1",
		Protocol: apikey.Protocol,
		Fields:   map[string]any{"apiKey": "k-1"},
	}
	if err := e.Refresh(context.Background(), cred); err != nil {
		t.Errorf("Refresh: %v", err)
	}
}

func TestRevokeClearsToken(t *testing.T) {
	e := newTestEngine(t)
	cred := &types.Credential{
		ID:       "c1",
		Protocol: apikey.Protocol,
		Fields:   map[string]any{"apiKey": "k-1"},
		Status:   types.StatusAuthenticated,
		Token:    types.Token{AccessToken: "k-1"},
	}

	if err := e.Revoke(context.Background(), cred); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !cred.Token.IsZero() {
		t.Errorf("token = %+v, want cleared", cred.Token)
	}
	if cred.Status != types.StatusConfiguring {
		t.Errorf("status = %s, want %s", cred.Status, types.StatusConfiguring)
	}
}

func TestHealthThroughEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestEngine(t)
	cred := &types.Credential{
		ID:       "c1",
		Protocol: apikey.Protocol,
		Fields:   map[string]any{"apiKey": "k-1", "healthEndpoint": srv.URL},
		Status:   types.StatusAuthenticated,
	}

	report, err := e.Health(context.Background(), cred)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !report.Healthy {
		t.Errorf("report = %+v, want healthy", report)
	}
}
