// Package temporal runs the order workflow on a Temporal cluster. The state
// machine is the same as the in-process engine's; classification and the
// kitchen phases run as activities and Temporal applies the retry policy.
package temporal

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// WorkflowType is the registered name of the order workflow.
const WorkflowType = api.WorkflowName

const (
	classifyTimeout = 30 * time.Second
	kitchenTimeout  = time.Minute
)

// RetryPolicy translates the definition's retry policy. Temporal's first
// retry waits InitialInterval and each later one is multiplied by the
// backoff coefficient, matching the in-process executor.
func RetryPolicy(def api.Definition) *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    def.Retry.InitialInterval,
		BackoffCoefficient: def.Retry.BackoffRate,
		MaximumAttempts:    int32(def.Retry.MaxAttempts),
		NonRetryableErrorTypes: []string{
			string(api.ErrorMalformedInput),
			string(api.ErrorInternal),
		},
	}
}

// NewWorkflow returns the order workflow function for def.
func NewWorkflow(def api.Definition) func(ctx workflow.Context, payload []byte) (api.OrderOutput, error) {
	transient := def.Retry.Transient()

	return func(ctx workflow.Context, payload []byte) (api.OrderOutput, error) {
		logger := workflow.GetLogger(ctx)

		classifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: classifyTimeout,
			RetryPolicy:         RetryPolicy(def),
		})
		kitchenCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: kitchenTimeout,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})

		var verdict api.ClassificationResult
		state := api.StartState
		for {
			logger.Info("state_entered", "state", string(state))

			switch state {
			case api.StateOrderPizzaJob:
				err := workflow.ExecuteActivity(classifyCtx, ActivityClassifyOrder, payload).Get(classifyCtx, &verdict)
				if err != nil {
					return api.OrderOutput{}, classifyFailure(transient, err)
				}
				state = api.StateWithPineapple

			case api.StateWithPineapple:
				if verdict.ContainsPineapple {
					state = api.StateSorryNoPineapple
				} else {
					state = api.StateLetsMakeYourPizza
				}

			case api.StateLetsMakeYourPizza:
				var prepared, delivered string
				if err := workflow.ExecuteActivity(kitchenCtx, ActivityPreparePizza).Get(kitchenCtx, &prepared); err != nil {
					return api.OrderOutput{}, err
				}
				if err := workflow.ExecuteActivity(kitchenCtx, ActivityDeliverPizza).Get(kitchenCtx, &delivered); err != nil {
					return api.OrderOutput{}, err
				}
				return api.OrderOutput{
					ContainsPineapple: false,
					PizzaStatus:       kitchen.Status(prepared, delivered),
				}, nil

			case api.StateSorryNoPineapple:
				r := api.Rejection()
				return api.OrderOutput{}, temporal.NewNonRetryableApplicationError(r.Cause, r.Error, nil, *r.Output)

			default:
				return api.OrderOutput{}, temporal.NewNonRetryableApplicationError(
					fmt.Sprintf("unknown state %q", state), string(api.ErrorInternal), nil)
			}
		}
	}
}

// classifyFailure maps the final classification error. A transient kind
// here means Temporal gave up retrying.
func classifyFailure(transient func(error) bool, err error) error {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return temporal.NewNonRetryableApplicationError("classification timed out", string(api.ErrorTimeoutExceeded), err)
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return temporal.NewNonRetryableApplicationError(err.Error(), string(api.ErrorInternal), err)
	}
	kind := api.ErrorKind(appErr.Type())
	if transient(api.NewError(kind, err)) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("step %q retries exhausted", api.StepClassifyOrder),
			string(api.ErrorRetriesExhausted), err)
	}
	return temporal.NewNonRetryableApplicationError(appErr.Error(), string(kind), err)
}

// ResultFromError converts a failed workflow run back into a terminal
// result. A nil error is not a failure and yields an internal error result.
func ResultFromError(err error) api.TerminalResult {
	if err == nil {
		return api.Failure(api.ErrorInternal, errors.New("no workflow error"))
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.Type() == api.RejectionError {
			return api.Rejection()
		}
		if kind, ok := knownKind(appErr.Type()); ok {
			return api.Failure(kind, err)
		}
	}

	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return api.Failure(api.ErrorTimeoutExceeded, err)
	}
	return api.Failure(api.ErrorInternal, err)
}

func knownKind(s string) (api.ErrorKind, bool) {
	switch k := api.ErrorKind(s); k {
	case api.ErrorServiceException, api.ErrorClientException, api.ErrorSdkException,
		api.ErrorMalformedInput, api.ErrorRetriesExhausted, api.ErrorTimeoutExceeded, api.ErrorInternal:
		return k, true
	}
	return "", false
}
