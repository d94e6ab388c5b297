package types

import "time"

// ExecutionResult is the per-call output of the execution pipeline. It is
// created fresh per call, never mutated after return, and passed by value
// to the caller.
type ExecutionResult struct {
	// RequestID correlates the result with log and trace records for the
	// call.
	RequestID string `json:"request_id,omitempty"`

	// Success is true for completed 2xx responses.
	Success bool `json:"success"`

	// StatusCode is the HTTP status code, zero when no response was
	// received.
	StatusCode int `json:"status_code,omitempty"`

	// Headers are the response headers (first value per key).
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the parsed response body: decoded JSON when the body parses
	// as JSON, else the raw text.
	Body any `json:"body,omitempty"`

	// RawBody always retains the unparsed response text alongside any
	// parsed form.
	RawBody string `json:"raw_body,omitempty"`

	// Duration is the total call duration including retries.
	Duration time.Duration `json:"duration_ms"`

	// ErrorCode is the taxonomy code when the call failed (e.g.
	// NETWORK_ERROR, PROVIDER_ERROR).
	ErrorCode string `json:"error_code,omitempty"`

	// Error is the human-readable failure message, with the provider
	// message when available.
	Error string `json:"error,omitempty"`

	// Attempts is the number of dispatch attempts made, including the
	// initial one.
	Attempts int `json:"attempts,omitempty"`

	// UnresolvedPlaceholders lists {{name}} tokens that had no value in the
	// substitution map and were left verbatim.
	UnresolvedPlaceholders []string `json:"unresolved_placeholders,omitempty"`

	// CredentialsRefreshed indicates the credential's tokens were silently
	// refreshed during this call.
	CredentialsRefreshed bool `json:"credentials_refreshed"`
}
