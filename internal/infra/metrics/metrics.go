package metrics

import (
	"context"
	"sync/atomic"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
)

type Counters struct {
	PaymentsCreated      uint64
	PaymentsSucceeded    uint64
	PaymentsCanceled     uint64
	PaymentsRetried      uint64
	RetriesExhausted     uint64
	PaymentsRefunded     uint64
	NotificationsSent    uint64
	NotificationsDropped uint64
}

// Snapshot is a point-in-time copy safe to serialize.
type Snapshot struct {
	PaymentsCreated      uint64 `json:"payments_created"`
	PaymentsSucceeded    uint64 `json:"payments_succeeded"`
	PaymentsCanceled     uint64 `json:"payments_canceled"`
	PaymentsRetried      uint64 `json:"payments_retried"`
	RetriesExhausted     uint64 `json:"retries_exhausted"`
	PaymentsRefunded     uint64 `json:"payments_refunded"`
	NotificationsSent    uint64 `json:"notifications_sent"`
	NotificationsDropped uint64 `json:"notifications_dropped"`
}

// Handle counts lifecycle events published on the bus.
func (c *Counters) Handle(_ context.Context, evt event.Event) error {
	switch evt.Type {
	case event.PaymentCreated:
		atomic.AddUint64(&c.PaymentsCreated, 1)
	case event.PaymentSucceeded:
		atomic.AddUint64(&c.PaymentsSucceeded, 1)
	case event.PaymentCanceled:
		atomic.AddUint64(&c.PaymentsCanceled, 1)
	case event.PaymentRetried:
		atomic.AddUint64(&c.PaymentsRetried, 1)
	case event.RetriesExhausted:
		atomic.AddUint64(&c.RetriesExhausted, 1)
	case event.PaymentRefunded:
		atomic.AddUint64(&c.PaymentsRefunded, 1)
	}
	return nil
}

func (c *Counters) IncNotificationSent() {
	atomic.AddUint64(&c.NotificationsSent, 1)
}

func (c *Counters) IncNotificationDropped() {
	atomic.AddUint64(&c.NotificationsDropped, 1)
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PaymentsCreated:      atomic.LoadUint64(&c.PaymentsCreated),
		PaymentsSucceeded:    atomic.LoadUint64(&c.PaymentsSucceeded),
		PaymentsCanceled:     atomic.LoadUint64(&c.PaymentsCanceled),
		PaymentsRetried:      atomic.LoadUint64(&c.PaymentsRetried),
		RetriesExhausted:     atomic.LoadUint64(&c.RetriesExhausted),
		PaymentsRefunded:     atomic.LoadUint64(&c.PaymentsRefunded),
		NotificationsSent:    atomic.LoadUint64(&c.NotificationsSent),
		NotificationsDropped: atomic.LoadUint64(&c.NotificationsDropped),
	}
}
