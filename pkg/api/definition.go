package api

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// WorkflowName is the name executions of the order workflow report.
const WorkflowName = "OrderPizza"

// Paths used by the order workflow's task state.
const (
	FlavourInputPath = "$.flavour"
	AnalysisPath     = "$.pineappleAnalysis"
)

// RetryPolicy controls how a step is retried when it fails transiently.
// MaxAttempts includes the first attempt. For example:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 6 => initial call + up to 5 retries
//
// The delay before attempt n (n >= 2) is
// InitialInterval * BackoffRate^(n-2).
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffRate     float64

	// RetryOn lists the error kinds treated as transient.
	RetryOn []ErrorKind
}

// Delay returns the wait before the given attempt. Attempts below 2 have
// no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 || p.InitialInterval <= 0 {
		return 0
	}
	rate := p.BackoffRate
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(p.InitialInterval) * math.Pow(rate, float64(attempt-2)))
}

// Transient returns the predicate built from RetryOn.
func (p RetryPolicy) Transient() func(error) bool {
	return RetryOn(p.RetryOn...)
}

// Definition is the configurable surface of the order workflow.
type Definition struct {
	Name    string
	Retry   RetryPolicy
	Timeout time.Duration
}

// DefaultDefinition returns the standard order workflow configuration:
// six attempts, 2s initial interval doubling each retry, retrying service,
// client and SDK exceptions, and a 300s execution timeout.
func DefaultDefinition() Definition {
	return Definition{
		Name: WorkflowName,
		Retry: RetryPolicy{
			MaxAttempts:     6,
			InitialInterval: 2 * time.Second,
			BackoffRate:     2,
			RetryOn:         append([]ErrorKind(nil), DefaultRetriableKinds...),
		},
		Timeout: 300 * time.Second,
	}
}

// Validate reports configuration errors.
func (d Definition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("workflow name is required"))
	}
	if d.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 1, got %d", d.Retry.MaxAttempts))
	}
	if d.Retry.InitialInterval < 0 {
		errs = append(errs, fmt.Errorf("initial interval must not be negative, got %v", d.Retry.InitialInterval))
	}
	if d.Retry.BackoffRate < 1 {
		errs = append(errs, fmt.Errorf("backoff rate must be >= 1, got %v", d.Retry.BackoffRate))
	}
	if d.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("workflow timeout must be positive, got %v", d.Timeout))
	}
	return errors.Join(errs...)
}

// Options is the flat option block exposed to declarative orchestration
// collaborators.
type Options struct {
	MaxAttempts            int         `json:"MaxAttempts"`
	InitialIntervalSeconds float64     `json:"InitialIntervalSeconds"`
	BackoffRate            float64     `json:"BackoffRate"`
	RetriableErrorKinds    []ErrorKind `json:"RetriableErrorKinds"`
	WorkflowTimeoutSeconds float64     `json:"WorkflowTimeoutSeconds"`
}

// Options flattens the definition.
func (d Definition) Options() Options {
	return Options{
		MaxAttempts:            d.Retry.MaxAttempts,
		InitialIntervalSeconds: d.Retry.InitialInterval.Seconds(),
		BackoffRate:            d.Retry.BackoffRate,
		RetriableErrorKinds:    append([]ErrorKind(nil), d.Retry.RetryOn...),
		WorkflowTimeoutSeconds: d.Timeout.Seconds(),
	}
}

// Document is a Step-Functions-style rendering of the state machine.
type Document struct {
	Comment        string                      `json:"Comment,omitempty"`
	StartAt        StateName                   `json:"StartAt"`
	States         map[StateName]StateDocument `json:"States"`
	TimeoutSeconds int                         `json:"TimeoutSeconds"`
}

// StateDocument describes one state of a Document.
type StateDocument struct {
	Type       StateType       `json:"Type"`
	Next       StateName       `json:"Next,omitempty"`
	InputPath  string          `json:"InputPath,omitempty"`
	ResultPath string          `json:"ResultPath,omitempty"`
	OutputPath string          `json:"OutputPath,omitempty"`
	Retry      []RetrierDoc    `json:"Retry,omitempty"`
	Choices    []ChoiceRuleDoc `json:"Choices,omitempty"`
	Default    StateName       `json:"Default,omitempty"`
	Error      string          `json:"Error,omitempty"`
	Cause      string          `json:"Cause,omitempty"`
}

// RetrierDoc is a Retry entry of a task state.
type RetrierDoc struct {
	ErrorEquals     []ErrorKind `json:"ErrorEquals"`
	IntervalSeconds float64     `json:"IntervalSeconds"`
	MaxAttempts     int         `json:"MaxAttempts"`
	BackoffRate     float64     `json:"BackoffRate"`
}

// ChoiceRuleDoc is a single rule of a choice state.
type ChoiceRuleDoc struct {
	Variable      string    `json:"Variable"`
	BooleanEquals bool      `json:"BooleanEquals"`
	Next          StateName `json:"Next"`
}

// Document renders d as a state machine description.
func (d Definition) Document() Document {
	return Document{
		Comment: d.Name,
		StartAt: StartState,
		States: map[StateName]StateDocument{
			StateOrderPizzaJob: {
				Type:       StateTypeTask,
				Next:       StateWithPineapple,
				InputPath:  FlavourInputPath,
				ResultPath: AnalysisPath,
				Retry: []RetrierDoc{{
					ErrorEquals:     append([]ErrorKind(nil), d.Retry.RetryOn...),
					IntervalSeconds: d.Retry.InitialInterval.Seconds(),
					MaxAttempts:     d.Retry.MaxAttempts,
					BackoffRate:     d.Retry.BackoffRate,
				}},
			},
			StateWithPineapple: {
				Type: StateTypeChoice,
				Choices: []ChoiceRuleDoc{{
					Variable:      AnalysisPath + ".containsPineapple",
					BooleanEquals: true,
					Next:          StateSorryNoPineapple,
				}},
				Default: StateLetsMakeYourPizza,
			},
			StateLetsMakeYourPizza: {
				Type:       StateTypeSucceed,
				OutputPath: AnalysisPath,
			},
			StateSorryNoPineapple: {
				Type:  StateTypeFail,
				Error: RejectionError,
				Cause: RejectionCause,
			},
		},
		TimeoutSeconds: int(d.Timeout / time.Second),
	}
}
