package contracts

import (
	"context"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
)

type EventPublisher interface {
	Publish(context.Context, event.Event) error
}

// Locker grants exclusive ownership of a key across workers. Lock returns an
// error without blocking when the key is already held.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Notifier delivers operator text messages.
type Notifier interface {
	Send(ctx context.Context, text string) error
}
