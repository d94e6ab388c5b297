// Package command implements the curl-default protocol module: the user
// supplies a curl-style command template with placeholders, and the module
// parses it into an HTTP request and dispatches it through the shared
// pipeline. Nothing is ever handed to a shell.
package command

import (
	"context"
	"encoding/base64"
	"sort"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/redact"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "curl-default"

// Module executes curl-style command templates over HTTP.
type Module struct {
	base.Module
}

// New creates a command template module.
func New(p *pipeline.Client) *Module {
	return &Module{base.Module{
		Meta: protocol.Metadata{
			Name:        Protocol,
			DisplayName: "Command Template",
			Description: "curl-style command templates rendered and sent as HTTP requests",
		},
		Pipeline: p,
	}}
}

func (m *Module) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "commandTemplate", Label: "Command Template", Kind: types.FieldTextarea, Required: true,
			Placeholder: `curl -X POST -H 'Authorization: Bearer {{token}}' {{url}}`},
	}
}

// Authenticate validates the template parses; malformed templates fail
// here, before any request is attempted.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	rendered, _ := pipeline.Substitute(cred.Field("commandTemplate"), fieldStrings(cred))
	if _, err := parseCommand(rendered); err != nil {
		return types.ErrorStep(1, 1, protoerr.CodeParse, err.Error()), nil
	}
	return types.CompleteStep(1, 1, "Command template validated"), nil
}

// Inject is empty: all request shape lives in the template itself.
func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	return types.Injection{}, nil
}

// Execute renders the template with credential fields plus per-call
// values, parses it, and dispatches the resulting request. The rendered
// command is logged with secrets masked.
func (m *Module) Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error) {
	values := fieldStrings(ec.Credential)
	for k, v := range ec.Values {
		values[k] = v
	}
	if ec.URL != "" {
		values["url"] = ec.URL
	}
	if ec.Credential.Token.AccessToken != "" {
		values["token"] = ec.Credential.Token.AccessToken
	}

	rendered, unresolved := pipeline.Substitute(ec.Credential.Field("commandTemplate"), values)
	cmd, err := parseCommand(rendered)
	if err != nil {
		return types.ExecutionResult{
			Success:                false,
			ErrorCode:              protoerr.CodeParse,
			Error:                  err.Error(),
			UnresolvedPlaceholders: unresolved,
		}, nil
	}

	m.Pipeline.Log(ctx, "rendered command template", "command", redact.Template(rendered))

	call := types.ExecutionContext{
		URL:        cmd.URL,
		Method:     cmd.Method,
		Headers:    cmd.Headers,
		Body:       cmd.Body,
		Credential: ec.Credential,
		Timeout:    ec.Timeout,
	}
	res, err := m.Dispatch(ctx, call, types.Injection{})
	res.UnresolvedPlaceholders = mergeUnresolved(res.UnresolvedPlaceholders, unresolved)
	return res, err
}

// Health parses the stored template; a template that parses is as healthy
// as this module can promise without spending a real call.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	rendered, _ := pipeline.Substitute(cred.Field("commandTemplate"), fieldStrings(cred))
	if _, err := parseCommand(rendered); err != nil {
		return types.UnhealthyReport(types.TokenMissing, 0, err.Error()), nil
	}
	return types.HealthyReport(types.TokenValid, 0, "command template parses"), nil
}

// fieldStrings flattens credential fields into substitution values,
// skipping anything that is not already a string.
func fieldStrings(cred *types.Credential) map[string]string {
	out := make(map[string]string, len(cred.Fields))
	for k, v := range cred.Fields {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// mergeUnresolved unions two unresolved-placeholder lists, keeping the
// sorted order Substitute established.
func mergeUnresolved(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, lists := range [][]string{a, b} {
		for _, name := range lists {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func basicAuth(userPass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userPass))
}
