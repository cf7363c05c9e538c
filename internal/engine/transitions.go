package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// transition is what a state handler decides: either the next state or a
// terminal result, never both.
type transition struct {
	next   api.StateName
	result *api.TerminalResult
}

func goTo(s api.StateName) transition {
	return transition{next: s}
}

func end(r api.TerminalResult) transition {
	return transition{result: &r}
}

type stateHandler func(e *engineImpl, ctx context.Context, exec *api.WorkflowExecution) transition

// transitions returns the handler table of the order workflow.
func transitions() map[api.StateName]stateHandler {
	return map[api.StateName]stateHandler{
		api.StateOrderPizzaJob:     (*engineImpl).orderPizzaJob,
		api.StateWithPineapple:     (*engineImpl).withPineapple,
		api.StateLetsMakeYourPizza: (*engineImpl).letsMakeYourPizza,
		api.StateSorryNoPineapple:  (*engineImpl).sorryNoPineapple,
	}
}

// checkHandlers fails unless every workflow state has exactly one handler.
func checkHandlers(table map[api.StateName]stateHandler) error {
	for _, s := range api.States() {
		if table[s] == nil {
			return fmt.Errorf("no handler for state %q", s)
		}
	}
	if len(table) != len(api.States()) {
		return fmt.Errorf("handler table has %d entries for %d states", len(table), len(api.States()))
	}
	return nil
}

// orderPizzaJob is the task state: it selects the flavour from the input,
// classifies it under the retry policy and stores the verdict at the result
// path.
func (e *engineImpl) orderPizzaJob(ctx context.Context, exec *api.WorkflowExecution) transition {
	payload := exec.Input.Payload
	selector := e.input
	if path := exec.Input.InputPath; path != "" {
		sel, err := classifier.Selector(path)
		if err != nil {
			return end(api.Failure(api.ErrorInternal, err))
		}
		selector = sel
	}

	out := e.steps.Execute(ctx, exec, api.StepClassifyOrder, func(ctx context.Context) (any, error) {
		flavour, err := selector(payload)
		if err != nil {
			return nil, err
		}
		return e.classify(ctx, flavour)
	})
	if !out.Succeeded() {
		return end(api.Failure(out.Kind, out.Err))
	}

	verdict, ok := out.Value.(api.ClassificationResult)
	if !ok {
		return end(api.Failure(api.ErrorInternal, fmt.Errorf("classifier returned %T", out.Value)))
	}
	exec.Analysis = &verdict
	return goTo(api.StateWithPineapple)
}

// withPineapple is the choice state. Anything that is not flagged as
// pineapple, including flavours missing from the menu, takes the default
// branch.
func (e *engineImpl) withPineapple(ctx context.Context, exec *api.WorkflowExecution) transition {
	if exec.Analysis == nil {
		return end(api.Failure(api.ErrorInternal, fmt.Errorf("no value at %s", api.AnalysisPath)))
	}
	if exec.Analysis.ContainsPineapple {
		return goTo(api.StateSorryNoPineapple)
	}
	return goTo(api.StateLetsMakeYourPizza)
}

func (e *engineImpl) letsMakeYourPizza(ctx context.Context, exec *api.WorkflowExecution) transition {
	status, err := e.kitchen.Fulfill(ctx)
	if err != nil {
		return end(failureFor(ctx, err))
	}
	return end(api.Success(api.OrderOutput{
		ContainsPineapple: false,
		PizzaStatus:       status,
	}))
}

func (e *engineImpl) sorryNoPineapple(ctx context.Context, exec *api.WorkflowExecution) transition {
	return end(api.Rejection())
}
