package api

import (
	"context"
	"errors"
)

// ErrExecutionNotFound is returned when an execution id is not in flight.
var ErrExecutionNotFound = errors.New("execution not found")

// InputSelector projects the raw order payload onto the task input, the way
// an input path such as "$.flavour" does. A payload the selector cannot
// project must produce an ErrorMalformedInput error.
type InputSelector func(payload []byte) (string, error)

// ClassifyFunc classifies the selected flavour identifier. Errors tagged with
// a retriable kind are retried by the step executor.
type ClassifyFunc func(ctx context.Context, flavour string) (ClassificationResult, error)

// Engine runs order workflows in process.
type Engine interface {
	// Run executes one order workflow to its terminal state and returns the
	// finished execution. exec.Result is always set when err is nil.
	//
	// The workflow timeout is the only cancellation trigger: cancelling ctx
	// does not abort a running execution, but ctx values (loggers, trace
	// spans) are propagated.
	Run(ctx context.Context, req OrderRequest) (*WorkflowExecution, error)

	// GetExecution returns a snapshot of a running execution.
	GetExecution(ctx context.Context, id string) (*WorkflowExecution, error)

	// ListExecutions returns snapshots of all running executions.
	ListExecutions(ctx context.Context) ([]*WorkflowExecution, error)

	// Definition returns the workflow definition the engine runs.
	Definition() Definition
}
