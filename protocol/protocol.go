package protocol

import (
	"context"
	"time"

	"github.com/apilink-dev/handshake/types"
)

// Module is the capability contract every authentication protocol
// implements. Concrete variants include API-key, the OAuth families,
// GitHub App/PAT, raw command templates, SOAP, GraphQL, WebSocket, and a
// no-auth scraper.
//
// Modules hold no hidden per-handshake state: everything a call needs is
// passed in through the credential or the execution context, and anything
// a call produces is returned or written to the credential the caller
// owns. Network and provider failures are always reported as return
// values, never as panics across the module boundary.
type Module interface {
	// Metadata returns static descriptive info for the protocol. It has no
	// side effects.
	Metadata() Metadata

	// RequiredFields returns the field definitions that must be present
	// and non-empty before authentication is attempted.
	RequiredFields() []types.FieldDefinition

	// OptionalFields returns the field definitions a caller may supply.
	OptionalFields() []types.FieldDefinition

	// Authenticate advances a possibly multi-step login flow by one step.
	// Step indices are one-based; data carries provider-returned values
	// (authorization code, fragment token) merged in by the caller between
	// steps. The returned step is terminal when its kind is complete or
	// error. The error return is reserved for programmer errors such as
	// malformed internal state.
	Authenticate(ctx context.Context, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error)

	// Inject returns the headers, query parameters, and body fragments to
	// merge into an outgoing call. It must not mutate the context.
	Inject(ec types.ExecutionContext) (types.Injection, error)

	// Execute owns the network call for one execution context and returns
	// a normalized result. Modules delegate the generic retry and timeout
	// behavior to the pipeline they were constructed with.
	Execute(ctx context.Context, ec types.ExecutionContext) (types.ExecutionResult, error)

	// Refresh obtains new token material for the credential, updating it
	// in place. Protocols without refresh support return a no-op success.
	Refresh(ctx context.Context, cred *types.Credential) error

	// Revoke performs best-effort revocation. Providers without a
	// revocation endpoint get local state cleared and success reported.
	Revoke(ctx context.Context, cred *types.Credential) error

	// TokenExpired is a pure query derived from stored expiry. Protocols
	// without refresh support always report false.
	TokenExpired(cred *types.Credential) bool

	// TokenExpiry returns the stored expiry instant, and false when the
	// credential has no known expiry.
	TokenExpiry(cred *types.Credential) (time.Time, bool)

	// Health runs a cheap probe that does not meaningfully consume
	// provider quota and reports whether the handshake's credentials are
	// currently usable.
	Health(ctx context.Context, cred *types.Credential) (types.HealthReport, error)
}

// Metadata describes a protocol module: identity, display information, and
// capability flags.
type Metadata struct {
	// Name is the registry discriminant (e.g. "api-key", "oauth-pkce").
	Name string `json:"name"`

	// DisplayName is the human-readable protocol name.
	DisplayName string `json:"display_name"`

	// Description explains the protocol family.
	Description string `json:"description,omitempty"`

	// SupportsRefresh indicates Refresh obtains new tokens rather than
	// no-opping.
	SupportsRefresh bool `json:"supports_refresh"`

	// SupportsRevocation indicates the provider exposes a revocation
	// endpoint.
	SupportsRevocation bool `json:"supports_revocation"`

	// RequiresServerSide indicates the flow needs a confidential client
	// (a client secret that must not live in a public client).
	RequiresServerSide bool `json:"requires_server_side"`

	// Deprecated flags legacy protocols kept for compatibility, such as
	// the OAuth implicit grant.
	Deprecated bool `json:"deprecated"`
}

// ToDescriptor extracts a module's static description without touching its
// implementation.
func ToDescriptor(m Module) Descriptor {
	return Descriptor{
		Metadata:       m.Metadata(),
		RequiredFields: m.RequiredFields(),
		OptionalFields: m.OptionalFields(),
	}
}

// Descriptor is the static description of a protocol module: its metadata
// plus the field definitions it declares.
type Descriptor struct {
	Metadata       Metadata                `json:"metadata"`
	RequiredFields []types.FieldDefinition `json:"required_fields,omitempty"`
	OptionalFields []types.FieldDefinition `json:"optional_fields,omitempty"`
}
