package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/inflight"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/pkg/api"
)

const fulfilledStatus = "Pizza is prepared and ready for delivery. Pizza has been delivered to your doorstep. Your pizza is on its way!"

// noSleep records backoff waits without sleeping.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.delays = append(n.delays, d)
	n.mu.Unlock()
	return ctx.Err()
}

func newTestEngine(t *testing.T, cfg Config) api.Engine {
	t.Helper()
	if cfg.Kitchen == nil {
		cfg.Kitchen = &kitchen.Kitchen{}
	}
	if cfg.Sleep == nil {
		cfg.Sleep = (&noSleep{}).Sleep
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng
}

func run(t *testing.T, eng api.Engine, payload string) *api.WorkflowExecution {
	t.Helper()
	exec, err := eng.Run(context.Background(), api.NewOrderRequest([]byte(payload)))
	require.NoError(t, err)
	require.NotNil(t, exec.Result)
	return exec
}

func TestRun_RecognizedFlavorsSucceed(t *testing.T) {
	eng := newTestEngine(t, Config{})

	for _, f := range classifier.DefaultFlavors {
		exec := run(t, eng, fmt.Sprintf(`{"flavour":%q}`, f))

		require.Equal(t, api.StatusSucceeded, exec.Status, f)
		require.Equal(t, api.StateLetsMakeYourPizza, exec.CurrentState)
		require.True(t, exec.Result.Succeeded)
		require.False(t, exec.Result.Output.ContainsPineapple)
		require.Equal(t, fulfilledStatus, exec.Result.Output.PizzaStatus)
		require.Contains(t, exec.Result.Output.PizzaStatus, "prepared")
		require.Equal(t, 1, exec.RetryAttempts[api.StepClassifyOrder])
		require.True(t, exec.Analysis.FlavorRecognized)
	}
}

func TestRun_PineappleIsRejected(t *testing.T) {
	eng := newTestEngine(t, Config{})

	for _, f := range []string{"pineapple", "Hawaiian", "extra pineapple"} {
		exec := run(t, eng, fmt.Sprintf(`{"flavour":%q}`, f))

		require.Equal(t, api.StatusFailed, exec.Status, f)
		require.Equal(t, api.StateSorryNoPineapple, exec.CurrentState)
		require.True(t, exec.Result.IsRejection())
		require.Equal(t, api.RejectionError, exec.Result.Error)
		require.Equal(t, api.RejectionCause, exec.Result.Cause)
		require.True(t, exec.Result.Output.ContainsPineapple)
		require.Equal(t, api.DeclineMessage, exec.Result.Output.PizzaStatus)
	}
}

func TestRun_RejectionSkipsKitchen(t *testing.T) {
	var fulfilled atomic.Int32
	eng := newTestEngine(t, Config{Kitchen: fulfillFunc(func(ctx context.Context) (string, error) {
		fulfilled.Add(1)
		return "made", nil
	})})

	run(t, eng, `{"flavour":"pineapple"}`)
	require.Zero(t, fulfilled.Load())
}

func TestRun_UnrecognizedFlavorTakesDefaultBranch(t *testing.T) {
	eng := newTestEngine(t, Config{})

	exec := run(t, eng, `{"flavour":"anchovy"}`)

	require.Equal(t, api.StatusSucceeded, exec.Status)
	require.False(t, exec.Analysis.FlavorRecognized)
	require.False(t, exec.Analysis.ContainsPineapple)
}

func TestRun_MalformedInputFailsWithoutRetry(t *testing.T) {
	sleeper := &noSleep{}
	eng := newTestEngine(t, Config{Sleep: sleeper.Sleep})

	for _, payload := range []string{`{}`, `{"size":"large"}`, `not json`, ``} {
		exec := run(t, eng, payload)

		require.Equal(t, api.StatusFailed, exec.Status, payload)
		require.Equal(t, api.ErrorMalformedInput, exec.Result.Kind)
		require.False(t, exec.Result.IsRejection())
		require.Nil(t, exec.Result.Output)
		require.Equal(t, 1, exec.RetryAttempts[api.StepClassifyOrder])
		require.Equal(t, api.StateOrderPizzaJob, exec.CurrentState)
	}
	require.Empty(t, sleeper.delays)
}

func TestRun_TransientClassifierFailuresAreRetried(t *testing.T) {
	clf := classifier.New(classifier.DefaultFlavors, nil)

	for k := 1; k < 6; k++ {
		sleeper := &noSleep{}
		calls := 0
		eng := newTestEngine(t, Config{
			Sleep: sleeper.Sleep,
			Classify: func(ctx context.Context, flavour string) (api.ClassificationResult, error) {
				calls++
				if calls <= k {
					return api.ClassificationResult{}, api.Errorf(api.ErrorSdkException, "cold start")
				}
				return clf.Classify(ctx, flavour)
			},
		})

		exec := run(t, eng, `{"flavour":"cheese"}`)

		require.Equal(t, api.StatusSucceeded, exec.Status)
		require.Equal(t, k+1, exec.RetryAttempts[api.StepClassifyOrder])
		require.Len(t, exec.RetryDelays[api.StepClassifyOrder], k)
		for i, d := range exec.RetryDelays[api.StepClassifyOrder] {
			// Delay before attempt n is 2s * 2^(n-2); entry i is attempt i+2.
			require.Equal(t, (2*time.Second)<<i, d)
		}
		require.Equal(t, exec.RetryDelays[api.StepClassifyOrder], sleeper.delays)
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	eng := newTestEngine(t, Config{
		Classify: func(ctx context.Context, flavour string) (api.ClassificationResult, error) {
			return api.ClassificationResult{}, api.Errorf(api.ErrorServiceException, "unavailable")
		},
	})

	exec := run(t, eng, `{"flavour":"cheese"}`)

	require.Equal(t, api.StatusFailed, exec.Status)
	require.Equal(t, api.ErrorRetriesExhausted, exec.Result.Kind)
	require.Equal(t, string(api.ErrorRetriesExhausted), exec.Result.Error)
	require.Equal(t, 6, exec.RetryAttempts[api.StepClassifyOrder])
	require.Contains(t, exec.Result.Cause, "unavailable")
}

func TestRun_WorkflowTimeoutDuringFulfillment(t *testing.T) {
	def := api.DefaultDefinition()
	def.Timeout = 30 * time.Millisecond

	eng := newTestEngine(t, Config{
		Definition: &def,
		Kitchen:    &kitchen.Kitchen{PrepareTime: time.Hour},
	})

	start := time.Now()
	exec := run(t, eng, `{"flavour":"pepperoni"}`)

	require.Equal(t, api.StatusTimedOut, exec.Status)
	require.Equal(t, api.ErrorTimeoutExceeded, exec.Result.Kind)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_WorkflowTimeoutDuringBackoff(t *testing.T) {
	def := api.DefaultDefinition()
	def.Timeout = 30 * time.Millisecond

	eng, err := New(Config{
		Definition: &def,
		Kitchen:    &kitchen.Kitchen{},
		Classify: func(ctx context.Context, flavour string) (api.ClassificationResult, error) {
			return api.ClassificationResult{}, api.Errorf(api.ErrorClientException, "throttled")
		},
	})
	require.NoError(t, err)

	start := time.Now()
	exec := run(t, eng, `{"flavour":"pepperoni"}`)

	// The 2s backoff is interrupted by the 30ms workflow timeout.
	require.Equal(t, api.StatusTimedOut, exec.Status)
	require.Equal(t, api.ErrorTimeoutExceeded, exec.Result.Kind)
	require.Equal(t, 1, exec.RetryAttempts[api.StepClassifyOrder])
	require.Less(t, time.Since(start), time.Second)
}

func TestRun_CallerCancellationDoesNotAbort(t *testing.T) {
	eng := newTestEngine(t, Config{
		Kitchen: &kitchen.Kitchen{PrepareTime: 20 * time.Millisecond},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := eng.Run(ctx, api.NewOrderRequest([]byte(`{"flavour":"cheese"}`)))
	require.NoError(t, err)
	require.Equal(t, api.StatusSucceeded, exec.Status)
}

func TestRun_KitchenPanicIsInternalFailure(t *testing.T) {
	eng := newTestEngine(t, Config{Kitchen: fulfillFunc(func(ctx context.Context) (string, error) {
		panic("oven exploded")
	})})

	exec := run(t, eng, `{"flavour":"cheese"}`)

	require.Equal(t, api.StatusFailed, exec.Status)
	require.Equal(t, api.ErrorInternal, exec.Result.Kind)
	require.Contains(t, exec.Result.Cause, "oven exploded")
}

func TestRun_KitchenErrorIsInternalFailure(t *testing.T) {
	eng := newTestEngine(t, Config{Kitchen: fulfillFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("out of dough")
	})})

	exec := run(t, eng, `{"flavour":"cheese"}`)

	require.Equal(t, api.ErrorInternal, exec.Result.Kind)
}

func TestRun_InputIsNotShared(t *testing.T) {
	eng := newTestEngine(t, Config{})

	payload := []byte(`{"flavour":"cheese"}`)
	exec, err := eng.Run(context.Background(), api.OrderRequest{Payload: payload})
	require.NoError(t, err)

	payload[0] = 'X'
	require.Equal(t, `{"flavour":"cheese"}`, string(exec.Input.Payload))
}

func TestRun_ConcurrentExecutionsAreIsolated(t *testing.T) {
	tracker := inflight.New()
	eng := newTestEngine(t, Config{
		Tracker: tracker,
		Kitchen: &kitchen.Kitchen{PrepareTime: time.Millisecond, DeliveryTime: time.Millisecond},
	})

	flavours := []string{"pepperoni", "pineapple", "cheese", "hawaiian", "anchovy"}
	const perFlavour = 20

	type result struct {
		flavour string
		exec    *api.WorkflowExecution
	}
	results := make(chan result, len(flavours)*perFlavour)

	var wg sync.WaitGroup
	for _, f := range flavours {
		for i := 0; i < perFlavour; i++ {
			wg.Add(1)
			go func(f string) {
				defer wg.Done()
				exec, err := eng.Run(context.Background(), api.NewOrderRequest([]byte(`{"flavour":"`+f+`"}`)))
				if err != nil {
					t.Errorf("Run(%s): %v", f, err)
					return
				}
				results <- result{f, exec}
			}(f)
		}
	}
	wg.Wait()
	close(results)

	ids := make(map[string]struct{})
	for r := range results {
		ids[r.exec.ID] = struct{}{}
		rejected := r.flavour == "pineapple" || r.flavour == "hawaiian"
		require.Equal(t, rejected, r.exec.Result.IsRejection(), r.flavour)
		require.Equal(t, !rejected, r.exec.Result.Succeeded, r.flavour)
	}
	require.Len(t, ids, len(flavours)*perFlavour)
	require.Zero(t, tracker.Len())
}

func TestRun_TracksExecutionWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	eng := newTestEngine(t, Config{
		NewID: func() string { return "exec-fixed" },
		Kitchen: fulfillFunc(func(ctx context.Context) (string, error) {
			close(entered)
			<-release
			return "done", nil
		}),
	})

	done := make(chan *api.WorkflowExecution)
	go func() {
		exec, _ := eng.Run(context.Background(), api.NewOrderRequest([]byte(`{"flavour":"cheese"}`)))
		done <- exec
	}()

	<-entered
	got, err := eng.GetExecution(context.Background(), "exec-fixed")
	require.NoError(t, err)
	require.Equal(t, api.StateLetsMakeYourPizza, got.CurrentState)
	require.Equal(t, api.StatusRunning, got.Status)
	require.NotNil(t, got.Analysis)

	list, err := eng.ListExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	close(release)
	exec := <-done
	require.Equal(t, api.StatusSucceeded, exec.Status)

	_, err = eng.GetExecution(context.Background(), "exec-fixed")
	require.ErrorIs(t, err, api.ErrExecutionNotFound)
}

func TestNew_RejectsInvalidDefinition(t *testing.T) {
	def := api.DefaultDefinition()
	def.Retry.MaxAttempts = 0
	def.Timeout = 0

	_, err := New(Config{Definition: &def})
	require.Error(t, err)
	require.Contains(t, err.Error(), "max attempts")
	require.Contains(t, err.Error(), "timeout")
}

func TestTransitions_EveryStateHasHandler(t *testing.T) {
	table := transitions()
	require.NoError(t, checkHandlers(table))

	delete(table, api.StateSorryNoPineapple)
	require.Error(t, checkHandlers(table))
}

func TestNewInMemoryEngine_UsesDefaultDefinition(t *testing.T) {
	eng := NewInMemoryEngine()
	require.Equal(t, api.DefaultDefinition().Options(), eng.Definition().Options())
}

// fulfillFunc adapts a function to Fulfiller.
type fulfillFunc func(ctx context.Context) (string, error)

func (f fulfillFunc) Fulfill(ctx context.Context) (string, error) { return f(ctx) }

func TestRun_ExecutionScopedInputPath(t *testing.T) {
	eng := newTestEngine(t, Config{})

	req := api.NewOrderRequest([]byte(`{"order":{"flavour":"pineapple"},"flavour":"cheese"}`))

	exec, err := eng.Run(context.Background(), req.WithInputPath("$.order.flavour"))
	require.NoError(t, err)
	require.True(t, exec.Result.IsRejection())

	// The default path still reads the top-level field.
	exec, err = eng.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, exec.Result.Succeeded)

	exec, err = eng.Run(context.Background(), req.WithInputPath("flavour"))
	require.NoError(t, err)
	require.Equal(t, api.ErrorInternal, exec.Result.Kind)
}
