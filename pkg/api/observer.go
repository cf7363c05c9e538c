package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the workflow engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay workflow execution. Callbacks for one
// execution are delivered sequentially from the goroutine running it;
// callbacks for different executions may arrive concurrently.
type Observer interface {
	// OnWorkflowStart is called once when an execution is created, before
	// the start state is entered.
	OnWorkflowStart(ctx context.Context, exec *WorkflowExecution)

	// OnStateEntered is called each time the execution moves to a state.
	OnStateEntered(ctx context.Context, exec *WorkflowExecution, state StateName)

	// OnStepStart is called before each attempt of a step. attempt is 1-based.
	OnStepStart(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int)

	// OnStepCompleted is called after each attempt returns, for both
	// successes and failures (err != nil).
	OnStepCompleted(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int, err error, duration time.Duration)

	// OnWorkflowSucceeded is called when the execution reaches a Succeed state.
	OnWorkflowSucceeded(ctx context.Context, exec *WorkflowExecution)

	// OnWorkflowFailed is called when the execution reaches a Fail state or
	// fails with a fatal error. exec.Result describes why.
	OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {}
func (NoopObserver) OnStateEntered(ctx context.Context, exec *WorkflowExecution, state StateName) {
}
func (NoopObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int) {
}
func (NoopObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
}
func (NoopObserver) OnWorkflowSucceeded(ctx context.Context, exec *WorkflowExecution) {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution)    {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, exec)
	}
}

func (c *CompositeObserver) OnStateEntered(ctx context.Context, exec *WorkflowExecution, state StateName) {
	for _, o := range c.observers {
		o.OnStateEntered(ctx, exec, state)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, exec, stepName, attempt)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, exec, stepName, attempt, err, d)
	}
}

func (c *CompositeObserver) OnWorkflowSucceeded(ctx context.Context, exec *WorkflowExecution) {
	for _, o := range c.observers {
		o.OnWorkflowSucceeded(ctx, exec)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, exec)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
	)
}

func (o *LoggingObserver) OnStateEntered(ctx context.Context, exec *WorkflowExecution, state StateName) {
	o.Logger.DebugContext(ctx, "state_entered",
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
		slog.String("state", string(state)),
		slog.String("state_type", string(state.Type())),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
		slog.String("step", stepName),
		slog.Int("attempt", attempt),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "step_attempt",
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
		slog.String("step", stepName),
		slog.Int("attempt", attempt),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnWorkflowSucceeded(ctx context.Context, exec *WorkflowExecution) {
	o.Logger.InfoContext(ctx, "workflow_succeeded",
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
		slog.Duration("elapsed", time.Since(exec.StartTime)),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution) {
	attrs := []any{
		slog.String("workflow", exec.Workflow),
		slog.String("execution_id", exec.ID),
		slog.String("state", string(exec.CurrentState)),
	}
	if exec.Result != nil {
		attrs = append(attrs,
			slog.String("error", exec.Result.Error),
			slog.String("cause", exec.Result.Cause),
		)
		// A rejection is an expected business outcome, not an engine error.
		if exec.Result.IsRejection() {
			o.Logger.InfoContext(ctx, "workflow_failed", attrs...)
			return
		}
	}
	o.Logger.ErrorContext(ctx, "workflow_failed", attrs...)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsSucceeded atomic.Int64
	workflowsFailed    atomic.Int64
	stepAttempts       atomic.Int64
	stepRetries        atomic.Int64
	stepsCompleted     atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsSucceeded int64
	WorkflowsFailed    int64
	PendingWorkflows   int64

	StepAttempts    int64
	StepRetries     int64
	StepsCompleted  int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, exec *WorkflowExecution) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnStepStart(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int) {
	m.stepAttempts.Add(1)
	if attempt > 1 {
		m.stepRetries.Add(1)
	}
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, exec *WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
	// Only count successful attempts for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnWorkflowSucceeded(ctx context.Context, exec *WorkflowExecution) {
	m.workflowsSucceeded.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, exec *WorkflowExecution) {
	m.workflowsFailed.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workflowsStarted.Load()
	succeeded := m.workflowsSucceeded.Load()
	failed := m.workflowsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:   started,
		WorkflowsSucceeded: succeeded,
		WorkflowsFailed:    failed,
		PendingWorkflows:   started - succeeded - failed,
		StepAttempts:       m.stepAttempts.Load(),
		StepRetries:        m.stepRetries.Load(),
		StepsCompleted:     steps,
		AvgStepDuration:    avg,
	}
}
