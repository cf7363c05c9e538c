// Package pizzaflow is an in-process workflow engine for pizza orders.
//
// An order is a JSON payload carrying a flavour. Each order runs through a
// small, fixed state machine:
//
//	Order Pizza Job  (task: classify the flavour, retried on transient errors)
//	      |
//	With Pineapple?  (choice on $.pineappleAnalysis.containsPineapple)
//	   /        \
//	Lets make    Sorry, We Dont
//	your pizza   add Pineapple
//	(succeed)    (fail)
//
// Executions are short-lived and isolated. Nothing is persisted; an
// execution is discarded once its terminal result has been emitted.
//
// # Engine
//
// The Engine runs orders synchronously and returns the finished
// execution. Many orders may run concurrently on one engine.
//
//	eng := pizzaflow.NewEngine()
//	resp := pizzaflow.Order(ctx, eng, []byte(`{"flavour":"pepperoni"}`), "")
//	// resp.StatusCode == 200
//	// resp.Body.PizzaStatus == "Pizza is prepared and ready for delivery. ..."
//
// Order maps the terminal result to a status code and body:
//
//   - accepted orders return 200 with the fulfillment status
//   - pineapple orders return 500 with a polite refusal
//   - timeouts return 500 {"error":"Order Timed Out"}
//   - everything else returns 500 {"error":"Internal Server Error"}
//
// # Retries and timeouts
//
// The classification step is retried on ServiceException, ClientException
// and SdkException, up to 6 attempts, waiting 2s, 4s, 8s, 16s and 32s
// between them. Use RetryBuilder to change this:
//
//	def := pizzaflow.Retry(3).
//	    WithExponentialBackoff(100*time.Millisecond, 2).
//	    Definition()
//	eng, err := pizzaflow.NewEngineWithConfig(pizzaflow.Config{Definition: &def})
//
// The whole execution is bounded by the definition timeout (300s by
// default). The caller's context does not cancel a running order; only the
// timeout does.
//
// # Observability
//
// Engines accept an Observer. LoggingObserver writes log/slog records,
// BasicMetrics keeps in-process counters, and NewCompositeObserver fans
// events out to several observers. Prometheus and OpenTelemetry observers
// are wired by the pizzaflow binary.
package pizzaflow
