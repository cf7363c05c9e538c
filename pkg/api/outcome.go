package api

import "time"

// Fixed texts of the rejection path.
const (
	DeclineMessage = "Sorry, we don't add pineapple to our pizzas."
	RejectionError = "Failed To Make Pizza"
	RejectionCause = "They asked for Pineapple"
)

// OutcomeKind describes how a step invocation ended.
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeTransientFailure
	OutcomeFatalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeFatalFailure:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// StepOutcome is the result of running one step through the step executor.
//
// Value is set for OutcomeSuccess. Kind and Err are set for failures.
// The executor itself only ever returns success or fatal outcomes; transient
// outcomes describe individual attempts and are absorbed by the retry loop.
type StepOutcome struct {
	Outcome OutcomeKind
	Value   any
	Kind    ErrorKind
	Err     error

	Attempts int
	Delays   []time.Duration
}

// Succeeded reports whether the step produced a value.
func (o StepOutcome) Succeeded() bool {
	return o.Outcome == OutcomeSuccess
}

// OrderOutput is the payload carried by both the success result and the
// pineapple rejection.
type OrderOutput struct {
	ContainsPineapple bool   `json:"containsPineapple"`
	PizzaStatus       string `json:"pizzaStatus"`
}

// TerminalResult is the single final outcome of an execution.
//
// Succeeded results carry Output. Failed results carry Error and Cause; the
// pineapple rejection also carries Output, while system failures carry Kind.
type TerminalResult struct {
	Succeeded bool
	Output    *OrderOutput

	Error string
	Cause string
	Kind  ErrorKind
}

// Success builds a Succeeded result.
func Success(out OrderOutput) TerminalResult {
	return TerminalResult{Succeeded: true, Output: &out}
}

// Rejection builds the Failed result of the pineapple branch.
func Rejection() TerminalResult {
	return TerminalResult{
		Output: &OrderOutput{
			ContainsPineapple: true,
			PizzaStatus:       DeclineMessage,
		},
		Error: RejectionError,
		Cause: RejectionCause,
	}
}

// Failure builds a Failed result for a system failure of the given kind.
func Failure(kind ErrorKind, cause error) TerminalResult {
	r := TerminalResult{
		Error: string(kind),
		Kind:  kind,
	}
	if cause != nil {
		r.Cause = cause.Error()
	}
	return r
}

// IsRejection reports whether r is the business rejection rather than a
// system failure.
func (r TerminalResult) IsRejection() bool {
	return !r.Succeeded && r.Kind == "" && r.Output != nil
}
