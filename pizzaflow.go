package pizzaflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/pizzaflow/internal/classifier"
	"github.com/petrijr/pizzaflow/internal/engine"
	"github.com/petrijr/pizzaflow/internal/kitchen"
	"github.com/petrijr/pizzaflow/internal/response"
	"github.com/petrijr/pizzaflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Definition           = api.Definition
	RetryPolicy          = api.RetryPolicy
	OrderRequest         = api.OrderRequest
	WorkflowExecution    = api.WorkflowExecution
	TerminalResult       = api.TerminalResult
	OrderOutput          = api.OrderOutput
	ClassificationResult = api.ClassificationResult
	ErrorKind            = api.ErrorKind
	Status               = api.Status
	StateName            = api.StateName
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	Response     = response.Response
	ResponseBody = response.Body
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	DefaultDefinition    = api.DefaultDefinition
	NewOrderRequest      = api.NewOrderRequest
)

// Re-export status values for convenience.

const (
	StatusRunning   = api.StatusRunning
	StatusSucceeded = api.StatusSucceeded
	StatusFailed    = api.StatusFailed
	StatusTimedOut  = api.StatusTimedOut
)

// Config configures an engine built by NewEngineWithConfig. Zero fields use
// defaults.
type Config struct {
	// Definition overrides the retry policy and workflow timeout.
	Definition *Definition

	// Flavors is the allow-set of recognized flavors.
	Flavors []string

	// InputPath selects the flavour from each payload, e.g. "$.order.flavour".
	InputPath string

	Observer Observer
	Logger   *slog.Logger

	// PrepareTime and DeliveryTime set the fulfillment phase durations.
	PrepareTime  time.Duration
	DeliveryTime time.Duration

	// Sleep is the backoff wait between step attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine returns an engine with the default definition, flavors and
// fulfillment times.
func NewEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewEngineWithObserver returns a default engine reporting to obs.
func NewEngineWithObserver(obs Observer) Engine {
	eng, err := engine.New(engine.Config{Observer: obs})
	if err != nil {
		panic(err)
	}
	return eng
}

// NewEngineWithConfig builds an engine from cfg.
func NewEngineWithConfig(cfg Config) (Engine, error) {
	flavors := cfg.Flavors
	if len(flavors) == 0 {
		flavors = classifier.DefaultFlavors
	}

	k := kitchen.New()
	if cfg.PrepareTime > 0 {
		k.PrepareTime = cfg.PrepareTime
	}
	if cfg.DeliveryTime > 0 {
		k.DeliveryTime = cfg.DeliveryTime
	}

	ecfg := engine.Config{
		Definition: cfg.Definition,
		Classify:   classifier.New(flavors, cfg.Logger).Classify,
		Kitchen:    k,
		Observer:   cfg.Observer,
		Sleep:      cfg.Sleep,
	}
	if cfg.InputPath != "" {
		sel, err := classifier.Selector(cfg.InputPath)
		if err != nil {
			return nil, err
		}
		ecfg.Input = sel
	}
	return engine.New(ecfg)
}

// Order runs one order through eng and formats the terminal result.
//
// inputPath selects the flavour for this execution only; empty uses the
// engine's selector. Order never fails: engine errors and panics become the
// generic 500 response.
func Order(ctx context.Context, eng Engine, payload []byte, inputPath string) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = response.InternalError()
		}
	}()

	req := api.NewOrderRequest(payload).WithInputPath(inputPath)
	exec, err := eng.Run(ctx, req)
	if err != nil {
		return response.InternalError()
	}
	return response.FormatExecution(exec)
}

// Run runs one order and returns the finished execution.
func Run(ctx context.Context, eng Engine, payload []byte) (*WorkflowExecution, error) {
	return eng.Run(ctx, api.NewOrderRequest(payload))
}

// GetExecution fetches an in-flight execution by ID.
func GetExecution(ctx context.Context, eng Engine, id string) (*WorkflowExecution, error) {
	return eng.GetExecution(ctx, id)
}

// ListExecutions lists in-flight executions.
func ListExecutions(ctx context.Context, eng Engine) ([]*WorkflowExecution, error) {
	return eng.ListExecutions(ctx)
}
