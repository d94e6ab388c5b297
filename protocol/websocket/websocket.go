// Package websocket implements the WebSocket protocol module: credentials
// are attached to the upgrade request as a header or query parameter, and
// health is a dial-and-close probe against the configured endpoint.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "websocket"

// Token placements for the upgrade request.
const (
	PlacementHeader = "header"
	PlacementQuery  = "query"
)

// DefaultQueryParam is the query parameter used when no override is
// configured.
const DefaultQueryParam = "token"

// dialTimeout bounds the handshake probe independently of the execution
// pipeline's timeouts, which do not apply to upgrade requests.
const dialTimeout = 15 * time.Second

// Module authenticates WebSocket upgrade requests.
type Module struct {
	base.Module

	dialer *websocket.Dialer
}

// New creates a WebSocket module.
func New(p *pipeline.Client) *Module {
	return &Module{
		Module: base.Module{
			Meta: protocol.Metadata{
				Name:        Protocol,
				DisplayName: "WebSocket",
				Description: "Token-bearing WebSocket upgrade requests with a dial probe",
			},
			Pipeline: p,
		},
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout},
	}
}

func (m *Module) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "endpoint", Label: "WebSocket Endpoint", Kind: types.FieldURL, Required: true,
			Placeholder: "wss://example.com/socket"},
		{ID: "token", Label: "Token", Kind: types.FieldSecret, Required: true},
	}
}

func (m *Module) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "placement", Label: "Token Placement", Kind: types.FieldSelect,
			Default: PlacementQuery,
			Options: []types.FieldOption{
				{Value: PlacementQuery, Label: "Query Parameter"},
				{Value: PlacementHeader, Label: "Authorization Header"},
			}},
		{ID: "queryParam", Label: "Query Parameter Name", Kind: types.FieldText,
			Default:     DefaultQueryParam,
			VisibleWhen: &types.FieldCondition{Field: "placement", Equals: PlacementQuery}},
	}
}

// Authenticate completes locally after a dial probe confirms the token is
// accepted for the upgrade.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if err := m.probe(ctx, cred); err != nil {
		return types.ErrorStep(1, 1, protoerr.CodeAuth, err.Error()), nil
	}
	cred.Token = types.Token{AccessToken: cred.Field("token")}
	return types.CompleteStep(1, 1, "WebSocket handshake accepted"), nil
}

// Inject attaches the token per the configured placement.
func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	cred := ec.Credential
	switch cred.Field("placement") {
	case PlacementHeader:
		return types.Injection{Headers: map[string]string{
			"Authorization": "Bearer " + cred.Field("token"),
		}}, nil
	default:
		param := cred.Field("queryParam")
		if param == "" {
			param = DefaultQueryParam
		}
		return types.Injection{Query: map[string]string{param: cred.Field("token")}}, nil
	}
}

// Execute dispatches an HTTP call with WebSocket credentials attached.
// Long-lived socket sessions are the caller's concern; this covers the
// REST surface most socket providers pair with their streams.
func (m *Module) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Health dials the endpoint and closes the connection immediately.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	if cred.Field("token") == "" {
		status = types.TokenMissing
	}

	start := time.Now()
	err := m.probe(ctx, cred)
	latency := time.Since(start)
	if err != nil {
		if protoerr.CodeOf(err) == protoerr.CodeAuth {
			return types.UnhealthyReport(types.TokenInvalid, latency, err.Error()), nil
		}
		return types.UnhealthyReport(status, latency, err.Error()), nil
	}
	return types.HealthyReport(status, latency, "dial succeeded"), nil
}

// probe performs one authenticated upgrade and closes the socket.
func (m *Module) probe(ctx context.Context, cred *types.Credential) error {
	target, header, err := m.dialTarget(cred)
	if err != nil {
		return err
	}

	conn, resp, err := m.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return protoerr.New(Protocol, "dial", protoerr.CodeAuth, "upgrade rejected by provider").
				WithDetails(map[string]any{"status_code": resp.StatusCode})
		}
		return protoerr.New(Protocol, "dial", protoerr.CodeNetwork, "dial failed").WithCause(err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

// dialTarget resolves the endpoint URL with the token placed per
// configuration.
func (m *Module) dialTarget(cred *types.Credential) (string, http.Header, error) {
	endpoint := cred.Field("endpoint")
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return "", nil, protoerr.New(Protocol, "dial", protoerr.CodeValidation, "endpoint must be a ws:// or wss:// URL")
	}

	header := http.Header{}
	switch cred.Field("placement") {
	case PlacementHeader:
		header.Set("Authorization", "Bearer "+cred.Field("token"))
	default:
		param := cred.Field("queryParam")
		if param == "" {
			param = DefaultQueryParam
		}
		q := u.Query()
		q.Set(param, cred.Field("token"))
		u.RawQuery = q.Encode()
	}
	return u.String(), header, nil
}
