// Package apikey implements the API-key protocol module. The key is
// injected as a header (default X-API-Key), a query parameter, a bearer
// token, or HTTP basic credentials, selected by the placement field.
package apikey

import (
	"context"
	"encoding/base64"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "api-key"

// Default injection targets when the caller does not override them.
const (
	DefaultHeaderName = "X-API-Key"
	DefaultQueryParam = "api_key"
)

// Placement values for the placement select field.
const (
	PlacementHeader = "header"
	PlacementQuery  = "query"
	PlacementBearer = "bearer"
	PlacementBasic  = "basic"
)

// Module is the API-key protocol module.
type Module struct {
	base.Module
}

// New creates an API-key module dispatching through the given pipeline.
func New(p *pipeline.Client) *Module {
	return &Module{base.Module{
		Meta: protocol.Metadata{
			Name:        Protocol,
			DisplayName: "API Key",
			Description: "Static API key sent as a header, query parameter, bearer token, or basic credentials",
		},
		Pipeline: p,
	}}
}

// RequiredFields declares the key itself.
func (m *Module) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "apiKey", Label: "API Key", Kind: types.FieldSecret, Required: true},
	}
}

// OptionalFields declares placement and probe configuration.
func (m *Module) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{
			ID: "placement", Label: "Key Placement", Kind: types.FieldSelect,
			Default: PlacementHeader,
			Options: []types.FieldOption{
				{Value: PlacementHeader, Label: "Request header"},
				{Value: PlacementQuery, Label: "Query parameter"},
				{Value: PlacementBearer, Label: "Bearer token"},
				{Value: PlacementBasic, Label: "Basic credentials"},
			},
		},
		{
			ID: "headerName", Label: "Header Name", Kind: types.FieldText,
			Default:     DefaultHeaderName,
			VisibleWhen: &types.FieldCondition{Field: "placement", Equals: PlacementHeader},
		},
		{
			ID: "queryParam", Label: "Query Parameter", Kind: types.FieldText,
			Default:     DefaultQueryParam,
			VisibleWhen: &types.FieldCondition{Field: "placement", Equals: PlacementQuery},
		},
		{
			ID: "username", Label: "Username", Kind: types.FieldText,
			VisibleWhen: &types.FieldCondition{Field: "placement", Equals: PlacementBasic},
		},
		{ID: "healthEndpoint", Label: "Health Endpoint", Kind: types.FieldURL},
	}
}

// Authenticate is a single local step: an API key needs no provider round
// trip, so a validated credential completes immediately.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	fs := types.CompleteStep(1, 1, "API key configured")
	fs.Description = "The key will be attached to every call."
	return fs, nil
}

// Inject returns the key placed according to the placement field. The
// context is never mutated.
func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	cred := ec.Credential
	key := cred.Field("apiKey")

	switch cred.Field("placement") {
	case PlacementQuery:
		param := cred.Field("queryParam")
		if param == "" {
			param = DefaultQueryParam
		}
		return types.Injection{Query: map[string]string{param: key}}, nil
	case PlacementBearer:
		return types.Injection{Headers: map[string]string{"Authorization": "Bearer " + key}}, nil
	case PlacementBasic:
		raw := cred.Field("username") + ":" + key
		encoded := base64.StdEncoding.EncodeToString([]byte(raw))
		return types.Injection{Headers: map[string]string{"Authorization": "Basic " + encoded}}, nil
	default:
		name := cred.Field("headerName")
		if name == "" {
			name = DefaultHeaderName
		}
		return types.Injection{Headers: map[string]string{name: key}}, nil
	}
}

// Execute dispatches the call with the key injected.
func (m *Module) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	return m.Dispatch(ctx, ec, inj)
}

// Health probes the configured health endpoint with the key attached.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	if cred.Field("apiKey") == "" {
		status = types.TokenMissing
	}
	inj, err := m.Inject(types.ExecutionContext{Credential: cred})
	if err != nil {
		return types.UnhealthyReport(status, 0, err.Error()), nil
	}
	return m.Probe(ctx, cred.Field("healthEndpoint"), cred, inj, status)
}
