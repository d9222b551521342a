// Package payment is the narrow port to the external subscription provider.
package payment

import (
	"context"
	"log/slog"
	"sync"
)

// Provider cancels a member's active subscription at the payment provider.
// Implementations must be idempotent: canceling an already-canceled
// subscription is not an error.
type Provider interface {
	CancelActiveSubscription(ctx context.Context, customerRef string) error
}

// Noop logs and succeeds. Used when no provider is configured.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) CancelActiveSubscription(ctx context.Context, customerRef string) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "payment provider not configured, skipping cancellation",
			"customer_ref", customerRef,
		)
	}
	return nil
}

// Fake records cancellations and can be programmed to fail. Test double.
type Fake struct {
	mu        sync.Mutex
	Err       error
	cancelled map[string]int
}

func NewFake() *Fake {
	return &Fake{cancelled: make(map[string]int)}
}

func (f *Fake) CancelActiveSubscription(_ context.Context, customerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.cancelled[customerRef]++
	return nil
}

// Cancelled returns how many times a customer's subscription was cancelled.
func (f *Fake) Cancelled(customerRef string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[customerRef]
}
