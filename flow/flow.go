// Package flow drives a protocol module's possibly multi-step login flow
// to a terminal state and keeps the credential's status in sync with the
// handshake state machine.
//
// A flow is a bounded sequence of steps. Validation precedes execution:
// before the first step, every module-declared required field must be
// present and non-empty, otherwise the runner returns a terminal error
// step listing all missing fields without contacting the provider.
package flow

import (
	"context"

	"github.com/apilink-dev/handshake/protoerr"
	"github.com/apilink-dev/handshake/protocol"
	"github.com/apilink-dev/handshake/types"
)

// Runner advances authentication flows. It is stateless; flow position
// lives in the step values the caller passes back in.
type Runner struct{}

// NewRunner creates a flow runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Advance runs one step of the module's authentication flow and applies
// the resulting status transition to the credential. Step indices are
// one-based; data carries provider-returned values (authorization code,
// fragment token) merged in between steps.
func (r *Runner) Advance(ctx context.Context, mod protocol.Module, cred *types.Credential, step int, data map[string]any) (types.FlowStep, error) {
	if step <= 1 {
		if missing := protocol.MissingFields(mod, cred); len(missing) > 0 {
			r.transition(cred, types.StatusError)
			fs := types.ErrorStep(1, 1, protoerr.CodeValidation, protocol.ValidationMessage(missing))
			fs.Data = map[string]any{"missing_fields": missing}
			return fs, nil
		}
		step = 1
	}

	r.transition(cred, types.StatusConfiguring)

	fs, err := mod.Authenticate(ctx, cred, step, data)
	if err != nil {
		r.transition(cred, types.StatusError)
		return fs, err
	}

	switch fs.Kind {
	case types.StepComplete:
		r.transition(cred, types.StatusAuthenticated)
	case types.StepError:
		r.transition(cred, types.StatusError)
	}
	return fs, nil
}

// transition applies a status change only when the state machine permits
// it; invalid edges leave the credential untouched.
func (r *Runner) transition(cred *types.Credential, next types.Status) {
	if cred == nil {
		return
	}
	if cred.Status.CanTransition(next) {
		cred.Status = next
	}
}
