package types

// Status represents the state of a handshake in the authentication state
// machine.
type Status string

const (
	// StatusUnconfigured indicates no required fields have been supplied yet.
	StatusUnconfigured Status = "unconfigured"

	// StatusConfiguring indicates an authentication flow is in progress.
	StatusConfiguring Status = "configuring"

	// StatusAuthenticated indicates the handshake completed and holds usable
	// credentials.
	StatusAuthenticated Status = "authenticated"

	// StatusExpired indicates issued tokens have expired. Only reachable
	// from StatusAuthenticated.
	StatusExpired Status = "expired"

	// StatusError indicates the last flow attempt failed. The state is not
	// terminal: a caller may retry from step one.
	StatusError Status = "error"
)

// CanTransition reports whether the state machine permits moving from s to
// next. Error is reachable from any non-terminal state, expired only from
// authenticated, and a retry from error restarts at configuring.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusUnconfigured, "":
		return next == StatusConfiguring || next == StatusError
	case StatusConfiguring:
		return next == StatusAuthenticated || next == StatusError
	case StatusAuthenticated:
		return next == StatusExpired || next == StatusError
	case StatusExpired:
		return next == StatusConfiguring || next == StatusAuthenticated || next == StatusError
	case StatusError:
		return next == StatusConfiguring
	}
	return false
}

// Terminal reports whether the status ends a flow round. Authenticated is
// the success terminal; error terminates the current round but permits
// retry.
func (s Status) Terminal() bool {
	return s == StatusAuthenticated
}
