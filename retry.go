package pizzaflow

import "time"

// RetryBuilder provides a fluent way to construct the RetryPolicy of a
// Definition.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry creates a RetryBuilder with the given maxAttempts, retrying the
// default transient kinds without delay.
//
// maxAttempts <= 0 is treated as 1 (no retries).
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryBuilder{
		policy: RetryPolicy{
			MaxAttempts: maxAttempts,
			BackoffRate: 1,
			RetryOn:     append([]ErrorKind(nil), DefaultDefinition().Retry.RetryOn...),
		},
	}
}

// WithExponentialBackoff configures exponential backoff: initial is the
// delay before the first retry and rate (default 2.0 if < 1) grows it for
// each later attempt.
//
// Example:
//
//	Retry(6).WithExponentialBackoff(2*time.Second, 2)
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, rate float64) RetryBuilder {
	p := r.policy
	p.InitialInterval = initial
	if rate < 1 {
		rate = 2.0
	}
	p.BackoffRate = rate
	return RetryBuilder{policy: p}
}

// WithConstantBackoff configures a constant backoff between retries.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	p := r.policy
	p.InitialInterval = delay
	p.BackoffRate = 1.0
	return RetryBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries will still respect MaxAttempts.
func (r RetryBuilder) Immediate() RetryBuilder {
	p := r.policy
	p.InitialInterval = 0
	p.BackoffRate = 1.0
	return RetryBuilder{policy: p}
}

// On replaces the error kinds treated as transient.
func (r RetryBuilder) On(kinds ...ErrorKind) RetryBuilder {
	p := r.policy
	p.RetryOn = append([]ErrorKind(nil), kinds...)
	return RetryBuilder{policy: p}
}

// Policy returns the underlying RetryPolicy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}

// Definition returns the default definition with this retry policy.
func (r RetryBuilder) Definition() Definition {
	d := DefaultDefinition()
	d.Retry = r.Policy()
	return d
}
