// Package kitchen simulates order fulfillment. Each phase is a suspension
// point that honours context cancellation.
package kitchen

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Phase messages, in the order they appear in a fulfilled order's status.
const (
	PreparedMessage     = "Pizza is prepared and ready for delivery."
	DeliveredMessage    = "Pizza has been delivered to your doorstep."
	ConfirmationMessage = "Your pizza is on its way!"
)

// Default phase durations.
const (
	DefaultPrepareTime  = 10 * time.Millisecond
	DefaultDeliveryTime = 20 * time.Millisecond
)

// Kitchen prepares and delivers pizzas.
type Kitchen struct {
	PrepareTime  time.Duration
	DeliveryTime time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Kitchen with the default phase durations.
func New() *Kitchen {
	return &Kitchen{
		PrepareTime:  DefaultPrepareTime,
		DeliveryTime: DefaultDeliveryTime,
	}
}

// Prepare bakes the pizza.
func (k *Kitchen) Prepare(ctx context.Context) (string, error) {
	if err := k.wait(ctx, k.PrepareTime); err != nil {
		return "", fmt.Errorf("prepare: %w", err)
	}
	return PreparedMessage, nil
}

// Deliver brings the pizza to the customer.
func (k *Kitchen) Deliver(ctx context.Context) (string, error) {
	if err := k.wait(ctx, k.DeliveryTime); err != nil {
		return "", fmt.Errorf("deliver: %w", err)
	}
	return DeliveredMessage, nil
}

// Fulfill runs Prepare then Deliver and returns the combined status line,
// closed by ConfirmationMessage.
func (k *Kitchen) Fulfill(ctx context.Context) (string, error) {
	prepared, err := k.Prepare(ctx)
	if err != nil {
		return "", err
	}
	delivered, err := k.Deliver(ctx)
	if err != nil {
		return "", err
	}
	return Status(prepared, delivered), nil
}

// Status joins phase messages and the confirmation into one status line.
func Status(phases ...string) string {
	parts := append(append([]string(nil), phases...), ConfirmationMessage)
	return strings.Join(parts, " ")
}

func (k *Kitchen) wait(ctx context.Context, d time.Duration) error {
	if k.Sleep != nil {
		return k.Sleep(ctx, d)
	}
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
