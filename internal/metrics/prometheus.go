// Package metrics exports workflow lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petrijr/pizzaflow/pkg/api"
)

const namespace = "pizzaflow"

// Outcome label values of pizzaflow_workflows_finished_total.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// PrometheusObserver is an api.Observer that records metrics in a
// Prometheus registry.
type PrometheusObserver struct {
	api.NoopObserver

	started      prometheus.Counter
	finished     *prometheus.CounterVec
	stepAttempts *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

var _ api.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_started_total",
			Help:      "Order workflow executions started.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_finished_total",
			Help:      "Order workflow executions finished, by outcome.",
		}, []string{"outcome"}),
		stepAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Step attempts, by step and result.",
		}, []string{"step", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual step attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Order workflow executions currently running.",
		}),
	}

	for _, c := range []prometheus.Collector{o.started, o.finished, o.stepAttempts, o.stepDuration, o.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) OnWorkflowStart(ctx context.Context, exec *api.WorkflowExecution) {
	o.started.Inc()
	o.inFlight.Inc()
}

func (o *PrometheusObserver) OnStepCompleted(ctx context.Context, exec *api.WorkflowExecution, stepName string, attempt int, err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	o.stepAttempts.WithLabelValues(stepName, result).Inc()
	o.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (o *PrometheusObserver) OnWorkflowSucceeded(ctx context.Context, exec *api.WorkflowExecution) {
	o.finished.WithLabelValues(OutcomeSucceeded).Inc()
	o.inFlight.Dec()
}

func (o *PrometheusObserver) OnWorkflowFailed(ctx context.Context, exec *api.WorkflowExecution) {
	o.finished.WithLabelValues(failureOutcome(exec)).Inc()
	o.inFlight.Dec()
}

func failureOutcome(exec *api.WorkflowExecution) string {
	switch {
	case exec.Result != nil && exec.Result.IsRejection():
		return OutcomeRejected
	case exec.Status == api.StatusTimedOut:
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
