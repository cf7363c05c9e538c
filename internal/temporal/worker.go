package temporal

import (
	"context"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/petrijr/pizzaflow/pkg/api"
)

// Registry is the subset of worker.Worker used for registration. The
// testsuite environment satisfies it too.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the order workflow and its activities to r.
func Register(r Registry, def api.Definition, acts *Activities) {
	r.RegisterWorkflowWithOptions(NewWorkflow(def), workflow.RegisterOptions{Name: WorkflowType})

	r.RegisterActivityWithOptions(acts.ClassifyOrder, activity.RegisterOptions{Name: ActivityClassifyOrder})
	r.RegisterActivityWithOptions(acts.PreparePizza, activity.RegisterOptions{Name: ActivityPreparePizza})
	r.RegisterActivityWithOptions(acts.DeliverPizza, activity.RegisterOptions{Name: ActivityDeliverPizza})
}

// NewWorker creates a worker on taskQueue with the order workflow
// registered. The caller starts and stops it.
func NewWorker(c client.Client, taskQueue string, def api.Definition, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, def, acts)
	return w
}

// Dial connects to the Temporal frontend at hostPort, logging through
// logger.
func Dial(hostPort string, logger *slog.Logger) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort: hostPort,
		Logger:   tlog.NewStructuredLogger(logger),
	})
}

// StartOptions returns the options for starting one order workflow. The
// definition's timeout bounds the whole execution.
func StartOptions(id, taskQueue string, def api.Definition) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                taskQueue,
		WorkflowExecutionTimeout: def.Timeout,
	}
}

// Submit starts an order workflow and waits for its terminal result.
func Submit(ctx context.Context, c client.Client, opts client.StartWorkflowOptions, payload []byte) (api.TerminalResult, error) {
	run, err := c.ExecuteWorkflow(ctx, opts, WorkflowType, payload)
	if err != nil {
		return api.TerminalResult{}, err
	}

	var out api.OrderOutput
	if err := run.Get(ctx, &out); err != nil {
		if ctx.Err() != nil {
			return api.TerminalResult{}, err
		}
		return ResultFromError(err), nil
	}
	return api.Success(out), nil
}
