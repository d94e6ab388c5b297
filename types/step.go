package types

// StepKind identifies what a flow step asks of the caller.
type StepKind string

const (
	// StepPrompt asks the caller to collect input and advance the flow.
	StepPrompt StepKind = "prompt"

	// StepRedirect hands an authorization URL to the caller. The flow
	// resumes with provider-returned data merged into the next
	// Authenticate call.
	StepRedirect StepKind = "redirect"

	// StepComplete terminates the flow successfully.
	StepComplete StepKind = "complete"

	// StepError terminates the current flow round with a failure. The
	// caller may retry from step one.
	StepError StepKind = "error"
)

// FlowStep is a transient value describing one step of a possibly
// multi-round login process.
type FlowStep struct {
	// Step is the one-based index of this step.
	Step int `json:"step"`

	// TotalSteps is the bounded length of the flow.
	TotalSteps int `json:"total_steps"`

	// Kind is what this step asks of the caller.
	Kind StepKind `json:"kind"`

	// Title is a short human-readable name for the step.
	Title string `json:"title"`

	// Description explains the step to the operator.
	Description string `json:"description,omitempty"`

	// Data is an opaque payload carried to the next step or to the caller
	// (authorization URL, PKCE verifier, missing field list, ...).
	Data map[string]any `json:"data,omitempty"`

	// ErrorCode is the taxonomy code when Kind is StepError.
	ErrorCode string `json:"error_code,omitempty"`

	// Error is the failure message when Kind is StepError.
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the step ends the current flow round.
func (s FlowStep) Terminal() bool {
	return s.Kind == StepComplete || s.Kind == StepError
}

// CompleteStep builds the terminal success step of an n-step flow.
func CompleteStep(step, total int, title string) FlowStep {
	return FlowStep{Step: step, TotalSteps: total, Kind: StepComplete, Title: title}
}

// ErrorStep builds a terminal error step carrying a taxonomy code and
// message.
func ErrorStep(step, total int, code, message string) FlowStep {
	return FlowStep{
		Step:       step,
		TotalSteps: total,
		Kind:       StepError,
		Title:      "Authentication failed",
		ErrorCode:  code,
		Error:      message,
	}
}
