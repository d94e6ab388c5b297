// Package protoerr provides structured error types for protocol modules.
//
// This package defines the engine's error taxonomy codes and a structured
// Error type that includes protocol context, operation details, error
// codes, and cause chains. It integrates with Go's standard errors package
// for error wrapping and unwrapping.
package protoerr

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy codes used across protocol modules for consistent error
// reporting.
const (
	// CodeValidation indicates missing or malformed required fields,
	// detected before any network call.
	CodeValidation = "VALIDATION_ERROR"

	// CodeAuth indicates the provider rejected the supplied credentials.
	CodeAuth = "AUTH_ERROR"

	// CodeTokenRefreshFailed indicates a due token refresh could not be
	// completed.
	CodeTokenRefreshFailed = "TOKEN_REFRESH_FAILED"

	// CodeNetwork indicates a connection, timeout, or DNS failure.
	CodeNetwork = "NETWORK_ERROR"

	// CodeParse indicates a malformed command template or a response the
	// caller required to be structured.
	CodeParse = "PARSE_ERROR"

	// CodeProvider indicates a well-formed HTTP response with a non-2xx
	// status.
	CodeProvider = "PROVIDER_ERROR"
)

// Error is a structured error type for protocol module operations.
// It provides context about which protocol and operation failed, includes
// a taxonomy code, and can wrap underlying errors.
type Error struct {
	// Protocol is the module discriminant that generated the error
	Protocol string

	// Operation is the specific operation that failed
	Operation string

	// Code is a taxonomy code constant
	Code string

	// Message is a human-readable error message, carrying the provider
	// message when one was available
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error that caused this error
	Cause error
}

// New creates a new structured protocol error.
//
// Example:
//
//	err := protoerr.New("oauth-pkce", "refresh", protoerr.CodeTokenRefreshFailed, "token endpoint returned 400")
func New(protocol, operation, code, message string) *Error {
	return &Error{
		Protocol:  protocol,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds an underlying error to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds additional context to this error.
// This method returns the same error instance for method chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
// It formats the error as: "protocol [operation/code]: message: cause"
//
// Examples:
//   - "api-key [execute/NETWORK_ERROR]: dial tcp: connection refused"
//   - "oauth-pkce [refresh/TOKEN_REFRESH_FAILED]: token endpoint returned 400"
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s [%s/%s]", e.Protocol, e.Operation, e.Code))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error.
// This enables errors.Is() and errors.As() to work with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// Two Error values are considered equal if they have the same Protocol,
// Operation, and Code; an empty field in the target acts as a wildcard.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Protocol != "" && e.Protocol != t.Protocol {
		return false
	}
	if t.Operation != "" && e.Operation != t.Operation {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// CodeOf extracts the taxonomy code from an error chain. It returns the
// empty string when no *Error is present in the chain.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
