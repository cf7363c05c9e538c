package api

import (
	"time"
)

// Status represents the lifecycle state of a workflow execution.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
)

// StateName identifies a state of the order workflow.
//
// The set is closed: the engine has exactly one handler per value returned
// by States, and a definition can only reference these names.
type StateName string

const (
	StateOrderPizzaJob     StateName = "Order Pizza Job"
	StateWithPineapple     StateName = "With Pineapple?"
	StateLetsMakeYourPizza StateName = "Lets make your pizza"
	StateSorryNoPineapple  StateName = "Sorry, We Dont add Pineapple"
)

// StateType is the kind of a workflow state.
type StateType string

const (
	StateTypeTask    StateType = "Task"
	StateTypeChoice  StateType = "Choice"
	StateTypeSucceed StateType = "Succeed"
	StateTypeFail    StateType = "Fail"
)

// StartState is the state every execution begins in.
const StartState = StateOrderPizzaJob

// StepClassifyOrder is the name of the retried classification step run by
// the Order Pizza Job task.
const StepClassifyOrder = "ClassifyOrder"

var stateTypes = map[StateName]StateType{
	StateOrderPizzaJob:     StateTypeTask,
	StateWithPineapple:     StateTypeChoice,
	StateLetsMakeYourPizza: StateTypeSucceed,
	StateSorryNoPineapple:  StateTypeFail,
}

// States returns every state of the order workflow in declaration order.
func States() []StateName {
	return []StateName{
		StateOrderPizzaJob,
		StateWithPineapple,
		StateLetsMakeYourPizza,
		StateSorryNoPineapple,
	}
}

// Type returns the state's kind. Unknown names report an empty StateType.
func (s StateName) Type() StateType {
	return stateTypes[s]
}

// Terminal reports whether the state ends an execution.
func (s StateName) Terminal() bool {
	t := s.Type()
	return t == StateTypeSucceed || t == StateTypeFail
}

// OrderRequest is the raw payload delivered by the ingress collaborator.
// It is never modified once an execution starts.
//
// InputPath selects the task input from Payload for this execution only
// (for example "$.flavour"); empty means the engine's default selector.
type OrderRequest struct {
	Payload   []byte
	InputPath string
}

// NewOrderRequest copies payload into a new OrderRequest.
func NewOrderRequest(payload []byte) OrderRequest {
	p := make([]byte, len(payload))
	copy(p, payload)
	return OrderRequest{Payload: p}
}

// WithInputPath returns a copy of r using path as its input selector.
func (r OrderRequest) WithInputPath(path string) OrderRequest {
	r.InputPath = path
	return r
}

// ClassificationResult is the verdict produced by the classifier and stored
// at the execution's result path ($.pineappleAnalysis).
type ClassificationResult struct {
	ContainsPineapple bool `json:"containsPineapple"`
	FlavorRecognized  bool `json:"flavorRecognized"`
}

// WorkflowExecution is the in-process record of a single order workflow run.
// It is owned and mutated by the engine only; observers and trackers receive
// it for reading.
type WorkflowExecution struct {
	ID           string
	Workflow     string
	CurrentState StateName
	Input        OrderRequest
	Status       Status
	StartTime    time.Time

	// RetryAttempts holds the number of attempts made by the most recent
	// invocation of each named step.
	RetryAttempts map[string]int

	// RetryDelays holds the backoff waited before each retry of the most
	// recent invocation of each named step. Entry i is the delay before
	// attempt i+2.
	RetryDelays map[string][]time.Duration

	// Analysis is the classification stored by the task state.
	Analysis *ClassificationResult

	// Result is set exactly once, when the execution reaches a terminal state
	// or fails.
	Result *TerminalResult
}

// Clone returns a deep copy that is safe to hand to another goroutine.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	if e == nil {
		return nil
	}
	c := *e
	c.RetryAttempts = make(map[string]int, len(e.RetryAttempts))
	for k, v := range e.RetryAttempts {
		c.RetryAttempts[k] = v
	}
	c.RetryDelays = make(map[string][]time.Duration, len(e.RetryDelays))
	for k, v := range e.RetryDelays {
		c.RetryDelays[k] = append([]time.Duration(nil), v...)
	}
	if e.Analysis != nil {
		a := *e.Analysis
		c.Analysis = &a
	}
	if e.Result != nil {
		r := *e.Result
		if r.Output != nil {
			o := *r.Output
			r.Output = &o
		}
		c.Result = &r
	}
	return &c
}
