// Package api contains the core types shared by the pizzaflow engine and its
// collaborators: the order workflow's states and definition, the execution
// record, step outcomes and terminal results, the error taxonomy, and the
// Observer interface.
//
// Most users interact with the higher-level pizzaflow package, which
// re-exports selected types and helpers from this package.
//
// # Workflow
//
// The order workflow is a fixed state machine:
//
//	Order Pizza Job (Task) -> With Pineapple? (Choice)
//	  containsPineapple == true -> Sorry, We Dont add Pineapple (Fail)
//	  otherwise                 -> Lets make your pizza (Succeed)
//
// Definition holds the configurable parts (retry policy and execution
// timeout). Definition.Document renders the machine in a Step Functions style
// for inspection.
//
// # Errors
//
// Failures are tagged with an ErrorKind via Error. The retry policy treats
// the kinds listed in RetryPolicy.RetryOn as transient; every other failure
// is fatal. KindOf recovers the kind from a wrapped error chain.
//
// # Observability
//
// Engines report lifecycle events to an Observer. LoggingObserver writes
// slog records, BasicMetrics keeps in-memory counters, and
// NewCompositeObserver fans events out to several observers.
package api
