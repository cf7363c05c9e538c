package temporal

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// Activity names.
const (
	ActivityClassifyOrder = api.StepClassifyOrder
	ActivityPreparePizza  = "PreparePizza"
	ActivityDeliverPizza  = "DeliverPizza"
)

// Activities holds the dependencies of the order workflow's activities.
type Activities struct {
	Input    api.InputSelector
	Classify api.ClassifyFunc
	Kitchen  *kitchen.Kitchen

	// Transient decides which classification failures Temporal may retry.
	// Everything else is returned as a non-retryable application error.
	Transient func(error) bool
}

// NewActivities returns activities with the default selector, kitchen and
// transient kinds around classify.
func NewActivities(classify api.ClassifyFunc) *Activities {
	return &Activities{
		Input:     classifier.ExtractFlavour,
		Classify:  classify,
		Kitchen:   kitchen.New(),
		Transient: api.RetryOn(api.DefaultRetriableKinds...),
	}
}

// ClassifyOrder selects the flavour from the raw payload and classifies it.
func (a *Activities) ClassifyOrder(ctx context.Context, payload []byte) (api.ClassificationResult, error) {
	flavour, err := a.Input(payload)
	if err != nil {
		return api.ClassificationResult{}, a.applicationError(err)
	}
	verdict, err := a.Classify(ctx, flavour)
	if err != nil {
		return api.ClassificationResult{}, a.applicationError(err)
	}
	return verdict, nil
}

// PreparePizza runs the preparation phase.
func (a *Activities) PreparePizza(ctx context.Context) (string, error) {
	return a.Kitchen.Prepare(ctx)
}

// DeliverPizza runs the delivery phase.
func (a *Activities) DeliverPizza(ctx context.Context) (string, error) {
	return a.Kitchen.Deliver(ctx)
}

// applicationError converts err to an application error whose type is the
// error kind, so retry decisions and results survive the trip through the
// Temporal server.
func (a *Activities) applicationError(err error) error {
	kind, ok := api.KindOf(err)
	if !ok {
		kind = api.ErrorInternal
	}
	if a.Transient != nil && a.Transient(err) {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
}
