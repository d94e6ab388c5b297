package types

import (
	"time"
)

// Token holds the token material issued to a credential by its provider.
// A zero ExpiresAt means the token does not expire (or the provider did not
// report an expiry).
type Token struct {
	// AccessToken is the token presented on authenticated calls.
	AccessToken string `json:"access_token,omitempty"`

	// RefreshToken is the token used to obtain a new access token, when the
	// protocol supports refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the wall-clock instant at which AccessToken stops being
	// valid. Zero means no known expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsZero reports whether the token carries no material at all.
func (t Token) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == "" && t.ExpiresAt.IsZero()
}

// Expired reports whether the token has a known expiry that has passed.
// Expiry is compared against wall-clock time with no skew margin.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// Credential is one configured handshake with a provider. It carries the
// protocol discriminant, the protocol-specific configuration fields, the
// handshake status, and any issued token material.
//
// Credentials are caller-owned mutable state: the engine is handed them by
// reference per call and may update token fields in place (for example
// after a transparent refresh), but never serializes or persists them.
type Credential struct {
	// ID uniquely identifies this handshake. The engine uses it as the key
	// for per-credential refresh serialization.
	ID string `json:"id"`

	// Protocol is the registry discriminant selecting the protocol module
	// (e.g. "api-key", "oauth-pkce", "github-app").
	Protocol string `json:"protocol"`

	// Fields holds protocol-specific secrets and configuration keyed by
	// field ID. Unknown or extra fields are ignored, never rejected.
	Fields map[string]any `json:"fields,omitempty"`

	// Status is the current state of the handshake state machine.
	Status Status `json:"status,omitempty"`

	// Token is the issued token material, when applicable.
	Token Token `json:"token,omitempty"`
}

// Field returns the string value of a configuration field. Non-string
// values and absent fields return the empty string.
func (c *Credential) Field(id string) string {
	if c == nil || c.Fields == nil {
		return ""
	}
	s, _ := c.Fields[id].(string)
	return s
}

// SetField stores a configuration field value, allocating the field map if
// needed.
func (c *Credential) SetField(id string, value any) {
	if c.Fields == nil {
		c.Fields = make(map[string]any)
	}
	c.Fields[id] = value
}
