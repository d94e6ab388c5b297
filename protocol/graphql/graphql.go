// Package graphql implements the GraphQL protocol module: queries are
// posted as {"query": ...} documents to a single endpoint, and a 200
// response carrying a non-empty errors array is reported as a failure.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "graphql"

// introspectionProbe is a minimal query every spec-compliant endpoint
// answers.
const introspectionProbe = `{"query":"{ __typename }"}`

// Module speaks GraphQL over HTTP POST.
type Module struct {
	base.Module
}

// New creates a GraphQL module.
func New(p *pipeline.Client) *Module {
	return &Module{base.Module{
		Meta: protocol.Metadata{
			Name:        Protocol,
			DisplayName: "GraphQL",
			Description: "GraphQL queries over HTTP with optional bearer authentication",
		},
		Pipeline: p,
	}}
}

func (m *Module) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "endpoint", Label: "GraphQL Endpoint", Kind: types.FieldURL, Required: true},
	}
}

func (m *Module) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "token", Label: "Bearer Token", Kind: types.FieldSecret},
	}
}

// Authenticate completes locally once the endpoint is configured.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if t := cred.Field("token"); t != "" {
		cred.Token = types.Token{AccessToken: t}
	}
	return types.CompleteStep(1, 1, "Endpoint configured"), nil
}

func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	if t := ec.Credential.Field("token"); t != "" {
		headers["Authorization"] = "Bearer " + t
	}
	return types.Injection{Headers: headers}, nil
}

// Execute posts the query document. A raw query string is wrapped as
// {"query": ...}; a body that already is a JSON document with a query key
// passes through untouched so callers can attach variables.
func (m *Module) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	inj, err := m.Inject(ec)
	if err != nil {
		return types.ExecutionResult{}, err
	}

	call := ec
	call.Method = "POST"
	if call.URL == "" {
		call.URL = ec.Credential.Field("endpoint")
	}
	call.Body = queryDocument(ec.Body)

	res, err := m.Dispatch(ctx, call, inj)
	if err != nil {
		return res, err
	}
	if res.Success {
		if msg, failed := responseErrors(res.RawBody); failed {
			res.Success = false
			res.ErrorCode = protoerr.CodeProvider
			res.Error = msg
		}
	}
	return res, nil
}

// Health runs a __typename introspection query.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	if cred.Field("token") == "" {
		status = types.TokenMissing
	}

	start := time.Now()
	res, err := m.Execute(ctx, types.ExecutionContext{Credential: cred, Body: introspectionProbe})
	latency := time.Since(start)
	if err != nil {
		return types.UnhealthyReport(status, latency, err.Error()), nil
	}
	switch {
	case res.Success:
		return types.HealthyReport(status, latency, "introspection query succeeded"), nil
	case res.StatusCode == 401 || res.StatusCode == 403:
		return types.UnhealthyReport(types.TokenInvalid, latency, res.Error), nil
	default:
		return types.UnhealthyReport(status, latency, res.Error), nil
	}
}

// queryDocument wraps a raw query string as a request document. Bodies
// that already parse as JSON objects with a query key are passed through.
func queryDocument(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]json.RawMessage
		if json.Unmarshal([]byte(trimmed), &doc) == nil {
			if _, ok := doc["query"]; ok {
				return trimmed
			}
		}
	}
	wrapped, _ := json.Marshal(map[string]string{"query": body})
	return string(wrapped)
}

// responseErrors reports whether the response body carries a non-empty
// GraphQL errors array, returning the first error message when it does.
func responseErrors(raw string) (string, bool) {
	var body struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal([]byte(raw), &body) != nil || len(body.Errors) == 0 {
		return "", false
	}
	msg := body.Errors[0].Message
	if msg == "" {
		msg = "GraphQL request returned errors"
	}
	if n := len(body.Errors); n > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n-1)
	}
	return msg, true
}
