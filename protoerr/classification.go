package protoerr

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Class categorizes errors by their nature for retry planning. The
// execution pipeline retries only transient failures; everything else is
// surfaced to the caller on the first occurrence.
type Class string

const (
	// ClassTransient indicates temporary failures that may resolve on
	// retry: timeouts, connection resets, aborted dials.
	ClassTransient Class = "transient"

	// ClassSemantic indicates input or configuration issues: validation
	// failures, malformed templates, unparseable responses.
	ClassSemantic Class = "semantic"

	// ClassPermanent indicates failures that will not resolve on retry:
	// rejected credentials, completed non-2xx responses.
	ClassPermanent Class = "permanent"
)

// DefaultClassForCode returns the default error class for a taxonomy code.
func DefaultClassForCode(code string) Class {
	switch code {
	case CodeValidation, CodeParse:
		return ClassSemantic
	case CodeNetwork:
		return ClassTransient
	case CodeAuth, CodeProvider, CodeTokenRefreshFailed:
		return ClassPermanent
	default:
		return ClassPermanent
	}
}

// Retryable reports whether an error code identifies a failure the
// pipeline may retry.
func Retryable(code string) bool {
	return DefaultClassForCode(code) == ClassTransient
}

// ClassOf classifies an arbitrary error. A structured *Error is classed
// by its taxonomy code. Bare transport failures are classed by condition:
// timeouts, connection resets, refused or aborted connections, and
// truncated reads may resolve on retry; a cancelled caller context never
// does. Anything unrecognized is permanent.
func ClassOf(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return ClassPermanent
	}
	var perr *Error
	if errors.As(err, &perr) {
		return DefaultClassForCode(perr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return ClassTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}
	return ClassPermanent
}
