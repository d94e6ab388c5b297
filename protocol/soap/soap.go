// Package soap implements the SOAP protocol module: requests are wrapped
// in a SOAP 1.1 envelope, optionally carrying a WS-Security UsernameToken
// header, and posted as text/xml with the configured SOAPAction.
package soap

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/protocol/base"
	"github.com/apilink-dev/handshake/types"
)

// Protocol is the registry discriminant for this module.
const Protocol = "soap"

// Module speaks SOAP 1.1 over HTTP POST.
type Module struct {
	base.Module
}

// New creates a SOAP module.
func New(p *pipeline.Client) *Module {
	return &Module{base.Module{
		Meta: protocol.Metadata{
			Name:        Protocol,
			DisplayName: "SOAP",
			Description: "SOAP 1.1 envelopes with optional WS-Security UsernameToken",
		},
		Pipeline: p,
	}}
}

func (m *Module) RequiredFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "endpoint", Label: "Service Endpoint", Kind: types.FieldURL, Required: true},
	}
}

func (m *Module) OptionalFields() []types.FieldDefinition {
	return []types.FieldDefinition{
		{ID: "soapAction", Label: "SOAPAction", Kind: types.FieldText},
		{ID: "username", Label: "Username", Kind: types.FieldText},
		{ID: "password", Label: "Password", Kind: types.FieldSecret},
	}
}

// Authenticate completes locally; SOAP credentials travel inside each
// envelope rather than through a handshake.
func (m *Module) Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	return types.CompleteStep(1, 1, "Endpoint configured"), nil
}

// Inject sets the content type and SOAPAction headers.
func (m *Module) Inject(ec types.ExecutionContext) (types.Injection, error) {
	headers := map[string]string{"Content-Type": "text/xml; charset=utf-8"}
	if action := ec.Credential.Field("soapAction"); action != "" {
		headers["SOAPAction"] = `"` + action + `"`
	}
	return types.Injection{Headers: headers}, nil
}

// Execute wraps the caller's body in a SOAP envelope when it is not one
// already and posts it to the configured endpoint.
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
	call.Body = envelope(ec.Body, securityHeader(ec.Credential))

	res, err := m.Dispatch(ctx, call, inj)
	if err != nil {
		return res, err
	}
	if res.Success && strings.Contains(res.RawBody, ":Fault>") {
		res.Success = false
		res.ErrorCode = protoerr.CodeProvider
		res.Error = faultString(res.RawBody)
	}
	return res, nil
}

// Health posts an empty envelope; any HTTP answer short of a 5xx means
// the endpoint is alive and parsing envelopes.
func (m *Module) Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error) {
	status := types.TokenValid
	if cred.Field("username") != "" && cred.Field("password") == "" {
		status = types.TokenMissing
	}

	start := time.Now()
	res, err := m.Execute(ctx, types.ExecutionContext{Credential: cred})
	latency := time.Since(start)
	if err != nil {
		return types.UnhealthyReport(status, latency, err.Error()), nil
	}
	if res.StatusCode >= 500 || res.StatusCode == 0 {
		return types.UnhealthyReport(status, latency, res.Error), nil
	}
	return types.HealthyReport(status, latency, "endpoint responded"), nil
}

// envelope wraps body XML in a SOAP 1.1 envelope unless it already is
// one.
func envelope(body, security string) string {
	if strings.Contains(body, "Envelope") && strings.Contains(body, "soap") {
		return body
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`)
	if security != "" {
		b.WriteString("<soap:Header>")
		b.WriteString(security)
		b.WriteString("</soap:Header>")
	}
	b.WriteString("<soap:Body>")
	b.WriteString(body)
	b.WriteString("</soap:Body></soap:Envelope>")
	return b.String()
}

// securityHeader renders a WS-Security UsernameToken when a username is
// configured. The password travels as PasswordText; digest schemes are a
// per-provider concern this module does not take on.
func securityHeader(cred *types.Credential) string {
	user := cred.Field("username")
	if user == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<wsse:Security xmlns:wsse="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd">`)
	b.WriteString("<wsse:UsernameToken><wsse:Username>")
	xml.EscapeText(&b, []byte(user))
	b.WriteString("</wsse:Username><wsse:Password>")
	xml.EscapeText(&b, []byte(cred.Field("password")))
	b.WriteString("</wsse:Password></wsse:UsernameToken></wsse:Security>")
	return b.String()
}

// faultString pulls the faultstring element out of a fault body, falling
// back to a generic message when the markup is unexpected.
func faultString(raw string) string {
	lower := strings.ToLower(raw)
	open := strings.Index(lower, "<faultstring")
	if open < 0 {
		return "SOAP fault"
	}
	rest := raw[open:]
	if gt := strings.Index(rest, ">"); gt >= 0 {
		rest = rest[gt+1:]
		if end := strings.Index(strings.ToLower(rest), "</faultstring>"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return "SOAP fault"
}
