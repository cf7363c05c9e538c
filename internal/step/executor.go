// Package step runs named units of work with bounded exponential-backoff
// retry and records every attempt on the owning workflow execution.
package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/pizzaflow/pkg/api"
)

// Func is a unit of work run by the Executor.
type Func func(ctx context.Context) (any, error)

// Options configures an Executor. Zero values fall back to defaults.
type Options struct {
	// Policy bounds attempts and shapes the backoff between them.
	Policy api.RetryPolicy

	// Transient reports whether a failure may be retried. Defaults to
	// Policy.Transient().
	Transient func(error) bool

	Observer api.Observer

	// Sleep waits for d or until ctx is done. Tests inject a recorder here.
	Sleep func(ctx context.Context, d time.Duration) error

	Clock func() time.Time
}

// Executor runs steps according to a retry policy.
// It holds no per-invocation state and is safe for concurrent use.
type Executor struct {
	policy    api.RetryPolicy
	transient func(error) bool
	observer  api.Observer
	sleep     func(context.Context, time.Duration) error
	clock     func() time.Time
}

// New returns an Executor for opts.
func New(opts Options) *Executor {
	x := &Executor{
		policy:    opts.Policy,
		transient: opts.Transient,
		observer:  opts.Observer,
		sleep:     opts.Sleep,
		clock:     opts.Clock,
	}
	if x.policy.MaxAttempts < 1 {
		x.policy.MaxAttempts = 1
	}
	if x.transient == nil {
		x.transient = x.policy.Transient()
	}
	if x.observer == nil {
		x.observer = api.NoopObserver{}
	}
	if x.sleep == nil {
		x.sleep = SleepContext
	}
	if x.clock == nil {
		x.clock = time.Now
	}
	return x
}

// Policy returns the retry policy the executor applies.
func (x *Executor) Policy() api.RetryPolicy {
	return x.policy
}

// Execute runs fn as the step called name on behalf of exec.
//
// Transient failures are retried until the policy's MaxAttempts is reached,
// after which the outcome is a fatal ErrorRetriesExhausted wrapping the last
// error. Any other failure ends the step immediately. Cancellation of ctx,
// during an attempt or a backoff wait, yields a fatal ErrorTimeoutExceeded.
//
// The returned outcome is always OutcomeSuccess or OutcomeFatalFailure.
// exec.RetryAttempts[name] and exec.RetryDelays[name] are reset at the start
// of the call and describe this invocation only.
func (x *Executor) Execute(ctx context.Context, exec *api.WorkflowExecution, name string, fn Func) api.StepOutcome {
	if exec.RetryAttempts == nil {
		exec.RetryAttempts = make(map[string]int)
	}
	if exec.RetryDelays == nil {
		exec.RetryDelays = make(map[string][]time.Duration)
	}
	exec.RetryAttempts[name] = 0
	delete(exec.RetryDelays, name)

	var delays []time.Duration

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			d := x.policy.Delay(attempt)
			delays = append(delays, d)
			exec.RetryDelays[name] = append([]time.Duration(nil), delays...)

			if err := x.sleep(ctx, d); err != nil {
				return fatal(api.ErrorTimeoutExceeded, cancelled(ctx, err), attempt-1, delays)
			}
		}

		if err := ctx.Err(); err != nil {
			return fatal(api.ErrorTimeoutExceeded, err, attempt-1, delays)
		}

		exec.RetryAttempts[name] = attempt
		x.observer.OnStepStart(ctx, exec, name, attempt)

		start := x.clock()
		value, err := invoke(ctx, fn)
		x.observer.OnStepCompleted(ctx, exec, name, attempt, err, x.clock().Sub(start))

		if err == nil {
			return api.StepOutcome{
				Outcome:  api.OutcomeSuccess,
				Value:    value,
				Attempts: attempt,
				Delays:   delays,
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fatal(api.ErrorTimeoutExceeded, errors.Join(ctxErr, err), attempt, delays)
		}

		if !x.transient(err) {
			kind, ok := api.KindOf(err)
			if !ok {
				kind = api.ErrorInternal
			}
			return fatal(kind, err, attempt, delays)
		}

		if attempt >= x.policy.MaxAttempts {
			return fatal(api.ErrorRetriesExhausted,
				fmt.Errorf("step %q failed after %d attempts: %w", name, attempt, err),
				attempt, delays)
		}
	}
}

// invoke calls fn and turns a panic into an ErrorInternal failure.
func invoke(ctx context.Context, fn Func) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = api.Errorf(api.ErrorInternal, "step panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func fatal(kind api.ErrorKind, err error, attempts int, delays []time.Duration) api.StepOutcome {
	var tagged *api.Error
	if !errors.As(err, &tagged) || tagged.Kind != kind {
		err = api.NewError(kind, err)
	}
	return api.StepOutcome{
		Outcome:  api.OutcomeFatalFailure,
		Kind:     kind,
		Err:      err,
		Attempts: attempts,
		Delays:   delays,
	}
}

func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
