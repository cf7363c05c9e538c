// Package engine runs the order workflow as an explicit finite-state
// machine: one handler per state, looked up in a transition table.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/inflight"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/internal/step"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// Fulfiller runs the fulfillment phases of an accepted order and returns the
// combined status line.
type Fulfiller interface {
	Fulfill(ctx context.Context) (string, error)
}

// Config describes how to construct an engine. Zero fields fall back to
// defaults: the default definition, the "$.flavour" selector, a classifier
// over classifier.DefaultFlavors and a kitchen with default phase times.
type Config struct {
	Definition *api.Definition

	Input    api.InputSelector
	Classify api.ClassifyFunc
	Kitchen  Fulfiller

	Observer api.Observer
	Tracker  *inflight.Tracker

	// Sleep is the backoff wait used between step attempts.
	Sleep func(ctx context.Context, d time.Duration) error
	Clock func() time.Time
	NewID func() string
}

// engineImpl is a synchronous, in-process engine implementation.
// Each Run owns its execution record; the tracker only ever sees copies.
type engineImpl struct {
	def      api.Definition
	input    api.InputSelector
	classify api.ClassifyFunc
	kitchen  Fulfiller
	observer api.Observer
	tracker  *inflight.Tracker
	steps    *step.Executor
	clock    func() time.Time
	newID    func() string

	handlers map[api.StateName]stateHandler
}

var _ api.Engine = (*engineImpl)(nil)

// New creates an engine from cfg.
func New(cfg Config) (api.Engine, error) {
	def := api.DefaultDefinition()
	if cfg.Definition != nil {
		def = *cfg.Definition
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	e := &engineImpl{
		def:      def,
		input:    cfg.Input,
		classify: cfg.Classify,
		kitchen:  cfg.Kitchen,
		observer: cfg.Observer,
		tracker:  cfg.Tracker,
		clock:    cfg.Clock,
		newID:    cfg.NewID,
	}
	if e.input == nil {
		e.input = classifier.ExtractFlavour
	}
	if e.classify == nil {
		e.classify = classifier.New(classifier.DefaultFlavors, nil).Classify
	}
	if e.kitchen == nil {
		e.kitchen = kitchen.New()
	}
	if e.observer == nil {
		e.observer = api.NoopObserver{}
	}
	if e.tracker == nil {
		e.tracker = inflight.New()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}

	e.steps = step.New(step.Options{
		Policy:   def.Retry,
		Observer: e.observer,
		Sleep:    cfg.Sleep,
		Clock:    e.clock,
	})

	e.handlers = transitions()
	if err := checkHandlers(e.handlers); err != nil {
		return nil, err
	}
	return e, nil
}

// NewInMemoryEngine returns an engine with every default.
func NewInMemoryEngine() api.Engine {
	e, err := New(Config{})
	if err != nil {
		// The default definition is always valid.
		panic(err)
	}
	return e
}

func (e *engineImpl) Definition() api.Definition {
	return e.def
}

func (e *engineImpl) Run(ctx context.Context, req api.OrderRequest) (*api.WorkflowExecution, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	exec := &api.WorkflowExecution{
		ID:            e.newID(),
		Workflow:      e.def.Name,
		CurrentState:  api.StartState,
		Input:         api.NewOrderRequest(req.Payload).WithInputPath(req.InputPath),
		Status:        api.StatusRunning,
		StartTime:     e.clock(),
		RetryAttempts: make(map[string]int),
		RetryDelays:   make(map[string][]time.Duration),
	}
	if err := e.tracker.Track(exec); err != nil {
		return nil, fmt.Errorf("track execution %s: %w", exec.ID, err)
	}
	defer e.tracker.Remove(exec.ID)

	// Caller cancellation is detached: only the workflow timeout
	// cancels an execution.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.def.Timeout)
	defer cancel()

	e.observer.OnWorkflowStart(runCtx, exec)

	result := e.drive(runCtx, exec)
	e.finish(runCtx, exec, result)

	return exec, nil
}

// drive walks the state machine from the start state until a handler yields
// a terminal result.
func (e *engineImpl) drive(ctx context.Context, exec *api.WorkflowExecution) (result api.TerminalResult) {
	defer func() {
		if r := recover(); r != nil {
			result = api.Failure(api.ErrorInternal, fmt.Errorf("state %q panicked: %v", exec.CurrentState, r))
		}
	}()

	state := api.StartState
	for {
		if err := ctx.Err(); err != nil {
			return api.Failure(api.ErrorTimeoutExceeded, err)
		}

		exec.CurrentState = state
		_ = e.tracker.Update(exec)
		e.observer.OnStateEntered(ctx, exec, state)

		h, ok := e.handlers[state]
		if !ok {
			return api.Failure(api.ErrorInternal, fmt.Errorf("no handler for state %q", state))
		}

		t := h(e, ctx, exec)
		if t.result != nil {
			return *t.result
		}
		state = t.next
	}
}

func (e *engineImpl) finish(ctx context.Context, exec *api.WorkflowExecution, result api.TerminalResult) {
	exec.Result = &result

	switch {
	case result.Succeeded:
		exec.Status = api.StatusSucceeded
	case result.Kind == api.ErrorTimeoutExceeded:
		exec.Status = api.StatusTimedOut
	default:
		exec.Status = api.StatusFailed
	}

	if result.Succeeded {
		e.observer.OnWorkflowSucceeded(ctx, exec)
	} else {
		e.observer.OnWorkflowFailed(ctx, exec)
	}
}

func (e *engineImpl) GetExecution(ctx context.Context, id string) (*api.WorkflowExecution, error) {
	return e.tracker.Get(id)
}

func (e *engineImpl) ListExecutions(ctx context.Context) ([]*api.WorkflowExecution, error) {
	return e.tracker.List(inflight.Filter{}), nil
}

// failureFor maps an error from a state's own work to a terminal failure.
func failureFor(ctx context.Context, err error) api.TerminalResult {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return api.Failure(api.ErrorTimeoutExceeded, err)
	}
	if kind, ok := api.KindOf(err); ok {
		return api.Failure(kind, err)
	}
	return api.Failure(api.ErrorInternal, err)
}
