// Package pipeline implements the engine's execution pipeline: it builds
// the outgoing request by merging module injection output with
// caller-supplied overrides and placeholder substitution, dispatches it
// under a bounded cancellable timeout with transient-failure retry, and
// normalizes the response into an ExecutionResult.
//
// Retry behavior is expressed as an explicit Policy value (max attempts,
// base delay, backoff function, injectable sleep) so that it is testable
// without real time delays. Within one call, retries execute sequentially
// to preserve backoff semantics and to avoid duplicate side effects
// against non-idempotent endpoints.
package pipeline
