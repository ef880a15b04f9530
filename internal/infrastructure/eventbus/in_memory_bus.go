package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
)

type HandlerFunc func(context.Context, event.Event) error

type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerFunc
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[event.Type][]HandlerFunc),
	}
}

func (b *InMemoryBus) Subscribe(handler HandlerFunc, eventTypes ...event.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
}

// Publish runs every handler for the event type. A failing handler does not
// stop the others; all errors are returned joined.
func (b *InMemoryBus) Publish(ctx context.Context, evt event.Event) error {
	b.mu.RLock()
	handlers := b.handlers[evt.Type]
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
