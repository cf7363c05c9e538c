// Package tracing records each workflow execution as an OpenTelemetry span.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/pizzaflow/pkg/api"
)

// InstrumentationName identifies spans created by this package.
const InstrumentationName = "github.com/petrijr/pizzaflow"

// Observer is an api.Observer that opens one span per execution, adds an
// event per state and step attempt, and ends the span with the outcome.
type Observer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ api.Observer = (*Observer)(nil)

// NewObserver creates an Observer using tp. A nil tp uses the global
// provider.
func NewObserver(tp trace.TracerProvider) *Observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Observer{
		tracer: tp.Tracer(InstrumentationName),
		spans:  make(map[string]trace.Span),
	}
}

func (o *Observer) OnWorkflowStart(ctx context.Context, exec *api.WorkflowExecution) {
	_, span := o.tracer.Start(ctx, exec.Workflow,
		trace.WithTimestamp(exec.StartTime),
		trace.WithAttributes(
			attribute.String("pizzaflow.execution_id", exec.ID),
			attribute.String("pizzaflow.workflow", exec.Workflow),
		),
	)

	o.mu.Lock()
	o.spans[exec.ID] = span
	o.mu.Unlock()
}

func (o *Observer) OnStateEntered(ctx context.Context, exec *api.WorkflowExecution, state api.StateName) {
	if span := o.span(exec.ID); span != nil {
		span.AddEvent("state_entered", trace.WithAttributes(
			attribute.String("pizzaflow.state", string(state)),
			attribute.String("pizzaflow.state_type", string(state.Type())),
		))
	}
}

func (o *Observer) OnStepStart(ctx context.Context, exec *api.WorkflowExecution, stepName string, attempt int) {
}

func (o *Observer) OnStepCompleted(ctx context.Context, exec *api.WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
	span := o.span(exec.ID)
	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("pizzaflow.step", stepName),
		attribute.Int("pizzaflow.attempt", attempt),
		attribute.Int64("pizzaflow.duration_ms", d.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("pizzaflow.error", err.Error()))
	}
	span.AddEvent("step_attempt", trace.WithAttributes(attrs...))
}

func (o *Observer) OnWorkflowSucceeded(ctx context.Context, exec *api.WorkflowExecution) {
	span := o.take(exec.ID)
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("pizzaflow.final_state", string(exec.CurrentState)))
	span.SetStatus(codes.Ok, "")
	span.End()
}

func (o *Observer) OnWorkflowFailed(ctx context.Context, exec *api.WorkflowExecution) {
	span := o.take(exec.ID)
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("pizzaflow.final_state", string(exec.CurrentState)))
	if exec.Result != nil {
		span.SetAttributes(
			attribute.String("pizzaflow.error", exec.Result.Error),
			attribute.String("pizzaflow.cause", exec.Result.Cause),
		)
		span.SetStatus(codes.Error, fmt.Sprintf("%s: %s", exec.Result.Error, exec.Result.Cause))
	} else {
		span.SetStatus(codes.Error, "failed")
	}
	span.End()
}

func (o *Observer) span(id string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spans[id]
}

func (o *Observer) take(id string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	span := o.spans[id]
	delete(o.spans, id)
	return span
}

// NewStdoutProvider returns a provider that writes spans as JSON to w.
// Callers must Shutdown the provider to flush.
func NewStdoutProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}
