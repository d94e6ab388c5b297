// Package redact masks sensitive credential material before it reaches
// logs or debug surfaces.
//
// Sensitivity is decided by a uniform name heuristic: any field whose name
// contains token, key, secret, password, auth, or credential
// (case-insensitive substring match) is treated as sensitive. Values are
// masked preserving a short prefix and suffix; rendered templates have the
// secret replaced wholesale with ***MASKED***.
package redact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Mask is the literal substituted for secrets in rendered templates.
const Mask = "***MASKED***"

// sensitiveMarkers is the uniform sensitivity list applied to field names.
var sensitiveMarkers = []string{"token", "key", "secret", "password", "auth", "credential"}

// authHeaderPattern matches header-style secret carriers in rendered text,
// e.g. "Authorization: Bearer abc123" or "X-API-Key: k_1".
var authHeaderPattern = regexp.MustCompile(`(?i)((?:authorization|proxy-authorization|x-api-key|api[-_]?key|x-auth-token)\s*:\s*(?:bearer\s+|basic\s+|token\s+)?)([^\s'"]+)`)

// queryParamPattern matches sensitively named query parameters inside URLs
// embedded in rendered text, e.g. "?api_key=sk_live_1&x=2". Transport
// errors echo the full request URL, so query-placed secrets travel through
// error strings too.
var queryParamPattern = regexp.MustCompile(`(?i)([?&][^=&?#\s'"]*(?:token|key|secret|password|auth|credential)[^=&?#\s'"]*=)([^&#\s'"]*)`)

// Sensitive reports whether a field name matches the sensitivity
// heuristic.
func Sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Value masks a secret value, preserving a short prefix and suffix and
// replacing the middle. Short values are masked entirely so that nothing
// recoverable remains.
func Value(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return Mask
	}
	return v[:2] + Mask + v[len(v)-2:]
}

// Template masks header-style and query-placed secrets embedded in a
// rendered command template or request dump. The header name, scheme, and
// parameter name survive; the secret itself is replaced with the mask
// literal.
//
//	redact.Template("curl -H 'Authorization: Bearer abc123' https://x")
//	// curl -H 'Authorization: Bearer ***MASKED***' https://x
func Template(text string) string {
	text = authHeaderPattern.ReplaceAllString(text, "${1}"+Mask)
	return queryParamPattern.ReplaceAllString(text, "${1}"+Mask)
}

// Error masks secrets carried in an error message. Wrapped transport
// errors quote the full request URL, including any secret injected as a
// query parameter, so error strings get the same treatment as rendered
// templates before logging.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Template(err.Error())
}

// Fields returns a copy of a credential field map safe for logging: every
// sensitive entry is masked, everything else passes through unchanged.
func Fields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if Sensitive(k) {
			out[k] = Value(fmt.Sprint(v))
			continue
		}
		out[k] = v
	}
	return out
}

// Headers returns a copy of a header map safe for logging.
func Headers(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if Sensitive(k) {
			out[k] = Value(v)
			continue
		}
		out[k] = v
	}
	return out
}

// Token wraps a sensitive string to prevent accidental logging. It
// implements fmt.Stringer and the JSON and text marshalers, all of which
// yield the mask literal instead of the value.
type Token struct {
	value string
}

// NewToken creates a Token wrapping the given value.
func NewToken(value string) Token {
	return Token{value: value}
}

// Value returns the wrapped secret. Use only when the token must be placed
// in a request; never log the result.
func (t Token) Value() string {
	return t.value
}

// IsEmpty reports whether the wrapped value is empty.
func (t Token) IsEmpty() bool {
	return t.value == ""
}

// String implements fmt.Stringer.
func (t Token) String() string {
	return Mask
}

// GoString implements fmt.GoStringer for %#v formatting.
func (t Token) GoString() string {
	return "redact.Token{" + Mask + "}"
}

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(Mask), nil
}

// MarshalJSON implements json.Marshaler.
func (t Token) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Mask + `"`), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so wire shapes can
// decode token material straight into the wrapper.
func (t *Token) UnmarshalText(b []byte) error {
	t.value = string(b)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Token) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t.value = s
	return nil
}
