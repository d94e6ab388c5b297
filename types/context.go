package types

import "time"

// ExecutionContext is the per-call input to the execution pipeline. It is
// treated as immutable for the duration of one call: modules receive it by
// value and return injection fragments instead of mutating it.
type ExecutionContext struct {
	// URL is the target URL. It may contain {{name}} placeholders resolved
	// from Values.
	URL string `json:"url"`

	// Method is the HTTP method. Empty defaults to GET.
	Method string `json:"method,omitempty"`

	// Headers are caller-supplied headers. They override module-injected
	// headers on key collision.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the raw request body. It may contain {{name}} placeholders.
	Body string `json:"body,omitempty"`

	// Values maps placeholder names to substitution values. Unresolved
	// placeholders are left verbatim and reported on the result.
	Values map[string]string `json:"values,omitempty"`

	// Credential is the handshake this call executes under.
	Credential *Credential `json:"-"`

	// Timeout overrides the pipeline's default timeout for this call. Zero
	// uses the default; out-of-range values are clamped.
	Timeout time.Duration `json:"timeout,omitempty"`

	// FollowRedirects selects redirect handling. Nil uses the pipeline
	// default (follow).
	FollowRedirects *bool `json:"follow_redirects,omitempty"`

	// MaxRedirects bounds redirect following. Zero uses the pipeline
	// default.
	MaxRedirects int `json:"max_redirects,omitempty"`
}

// Injection is the set of request fragments a protocol module contributes
// to an outgoing call. The pipeline merges it with the context: caller
// headers win over injected headers, injected query parameters are appended
// to the URL, and an injected body is used only when the context carries
// none.
type Injection struct {
	// Headers to merge into the outgoing request.
	Headers map[string]string `json:"headers,omitempty"`

	// Query parameters to append to the request URL.
	Query map[string]string `json:"query,omitempty"`

	// Body replaces an empty context body.
	Body string `json:"body,omitempty"`
}

// Merge combines two injections, with fragments from other taking
// precedence on collision.
func (i Injection) Merge(other Injection) Injection {
	out := Injection{
		Headers: make(map[string]string, len(i.Headers)+len(other.Headers)),
		Query:   make(map[string]string, len(i.Query)+len(other.Query)),
		Body:    i.Body,
	}
	for k, v := range i.Headers {
		out.Headers[k] = v
	}
	for k, v := range other.Headers {
		out.Headers[k] = v
	}
	for k, v := range i.Query {
		out.Query[k] = v
	}
	for k, v := range other.Query {
		out.Query[k] = v
	}
	if other.Body != "" {
		out.Body = other.Body
	}
	return out
}
