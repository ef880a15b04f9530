package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

type fakeProcessor struct {
	mu       sync.Mutex
	charges  []payment.Charge
	refunds  []string
	createFn func(payment.Charge) (*payment.RemotePayment, error)
	refundFn func(remoteID string, amount decimal.Decimal) (string, error)
}

func (f *fakeProcessor) CreatePayment(_ context.Context, charge payment.Charge) (*payment.RemotePayment, error) {
	f.mu.Lock()
	f.charges = append(f.charges, charge)
	n := len(f.charges)
	f.mu.Unlock()

	if f.createFn != nil {
		return f.createFn(charge)
	}
	return &payment.RemotePayment{
		ID:              fmt.Sprintf("rem-%d", n),
		ConfirmationURL: fmt.Sprintf("https://pay.example/confirm/%d", n),
	}, nil
}

func (f *fakeProcessor) CreateRefund(_ context.Context, remoteID string, amount decimal.Decimal, _ string) (string, error) {
	f.mu.Lock()
	f.refunds = append(f.refunds, remoteID)
	f.mu.Unlock()

	if f.refundFn != nil {
		return f.refundFn(remoteID, amount)
	}
	return "refund-" + remoteID, nil
}

func (f *fakeProcessor) Charges() []payment.Charge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment.Charge(nil), f.charges...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingPublisher) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]event.Type, 0, len(r.events))
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}

func (r *recordingPublisher) Last() event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingPublisher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("lock held")
}

type noopLogger struct{}

func (n *noopLogger) Info(string, map[string]any)  {}
func (n *noopLogger) Warn(string, map[string]any)  {}
func (n *noopLogger) Error(string, map[string]any) {}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
