package soap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apilink-dev/handshake/pipeline"
	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/types"
)

func TestEnvelopeWrapsBareBody(t *testing.T) {
	got := envelope("<GetQuote><symbol>ACME</symbol></GetQuote>", "")
	for _, want := range []string{
		"<soap:Envelope",
		"<soap:Body><GetQuote><symbol>ACME</symbol></GetQuote></soap:Body>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("envelope missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<soap:Header>") {
		t.Error("header emitted without security content")
	}
}

func TestEnvelopePassesThroughExistingEnvelope(t *testing.T) {
	in := `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body/></soap:Envelope>`
	if got := envelope(in, ""); got != in {
		t.Errorf("pre-built envelope rewritten:\n%s", got)
	}
}

func TestEnvelopeIncludesSecurityHeader(t *testing.T) {
	got := envelope("<Ping/>", "<wsse:Security/>")
	if !strings.Contains(got, "<soap:Header><wsse:Security/></soap:Header>") {
		t.Errorf("security header not placed:\n%s", got)
	}
}

func TestSecurityHeaderEscapes(t *testing.T) {
	cred := &types.Credential{Fields: map[string]any{
		"username": "a<b",
		"password": `p&ss"w`,
	}}
	got := securityHeader(cred)
	if !strings.Contains(got, "<wsse:Username>a&lt;b</wsse:Username>") {
		t.Errorf("username not escaped: %s", got)
	}
	if !strings.Contains(got, "p&amp;ss") {
		t.Errorf("password not escaped: %s", got)
	}
	if strings.Contains(got, "a<b") {
		t.Error("raw markup leaked into the header")
	}
}

func TestSecurityHeaderEmptyWithoutUsername(t *testing.T) {
	cred := &types.Credential{Fields: map[string]any{"password": "p"}}
	if got := securityHeader(cred); got != "" {
		t.Errorf("securityHeader = %q, want empty", got)
	}
}

func TestFaultString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain faultstring",
			raw:  `<soap:Fault><faultcode>soap:Server</faultcode><faultstring>ledger offline</faultstring></soap:Fault>`,
			want: "ledger offline",
		},
		{
			name: "mixed case tag",
			raw:  `<soap:Fault><FaultString> bad request </FaultString></soap:Fault>`,
			want: "bad request",
		},
		{
			name: "no faultstring element",
			raw:  `<soap:Fault><faultcode>soap:Client</faultcode></soap:Fault>`,
			want: "SOAP fault",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := faultString(tt.raw); got != tt.want {
				t.Errorf("faultString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutePostsEnvelope(t *testing.T) {
	var gotBody, gotAction, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAction = r.Header.Get("SOAPAction")
		gotType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<soap:Envelope><soap:Body><GetQuoteResponse/></soap:Body></soap:Envelope>`))
	}))
	defer srv.Close()

	m := New(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: Protocol,
		Fields: map[string]any{
			"endpoint":   srv.URL,
			"soapAction": "urn:GetQuote",
			"username":   "svc",
			"password":   "pw",
		},
	}

	res, err := m.Execute(context.Background(), types.ExecutionContext{
		Credential: cred,
		Body:       "<GetQuote/>",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if gotAction != `"urn:GetQuote"` {
		t.Errorf("SOAPAction = %q", gotAction)
	}
	if !strings.HasPrefix(gotType, "text/xml") {
		t.Errorf("Content-Type = %q", gotType)
	}
	for _, want := range []string{"<soap:Envelope", "<wsse:Username>svc</wsse:Username>", "<GetQuote/>"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("posted body missing %q:\n%s", want, gotBody)
		}
	}
}

func TestExecuteSurfacesFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<soap:Envelope><soap:Body><soap:Fault><faultstring>ledger offline</faultstring></soap:Fault></soap:Body></soap:Envelope>`))
	}))
	defer srv.Close()

	m := New(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: Protocol,
		Fields:   map[string]any{"endpoint": srv.URL},
	}

	res, err := m.Execute(context.Background(), types.ExecutionContext{
		Credential: cred,
		Body:       "<Ping/>",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Success {
		t.Fatal("fault body reported as success")
	}
	if res.ErrorCode != protoerr.CodeProvider {
		t.Errorf("error code = %s, want %s", res.ErrorCode, protoerr.CodeProvider)
	}
	if res.Error != "ledger offline" {
		t.Errorf("error = %q, want the faultstring", res.Error)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantHealthy bool
	}{
		{"endpoint alive", http.StatusOK, true},
		{"client error still alive", http.StatusBadRequest, true},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			m := New(pipeline.NewClient())
			cred := &types.Credential{
				ID:       "c1",
				Protocol: Protocol,
				Fields:   map[string]any{"endpoint": srv.URL},
			}

			report, err := m.Health(context.Background(), cred)
			if err != nil {
				t.Fatalf("Health: %v", err)
			}
			if report.Healthy != tt.wantHealthy {
				t.Errorf("healthy = %v, want %v", report.Healthy, tt.wantHealthy)
			}
		})
	}
}

func TestHealthMissingPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	m := New(pipeline.NewClient())
	cred := &types.Credential{
		ID:       "c1",
		Protocol: Protocol,
		Fields:   map[string]any{"endpoint": srv.URL, "username": "svc"},
	}

	report, err := m.Health(context.Background(), cred)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if report.TokenStatus != types.TokenMissing {
		t.Errorf("token status = %s, want %s", report.TokenStatus, types.TokenMissing)
	}
}
