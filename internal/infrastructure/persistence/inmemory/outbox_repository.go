package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/outbox"
)

type OutboxRepository struct {
	mu     sync.Mutex
	events []outbox.OutboxEvent
	leases map[string]time.Time
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{leases: make(map[string]time.Time)}
}

func (r *OutboxRepository) Save(_ context.Context, evt outbox.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if evt.Status == "" {
		evt.Status = outbox.StatusPending
	}
	evt.Payload = append([]byte(nil), evt.Payload...)
	r.events = append(r.events, evt)
	return nil
}

func (r *OutboxRepository) Claim(_ context.Context, limit int, now, leaseUntil time.Time) ([]outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claimed []outbox.OutboxEvent
	for i := range r.events {
		if len(claimed) == limit {
			break
		}
		rec := &r.events[i]
		stale := rec.Status == outbox.StatusSending && r.leases[rec.ID].Before(now)
		if rec.Status != outbox.StatusPending && !stale {
			continue
		}
		rec.Status = outbox.StatusSending
		r.leases[rec.ID] = leaseUntil
		claimed = append(claimed, *rec)
	}
	return claimed, nil
}

func (r *OutboxRepository) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.events {
		if r.events[i].ID == id && r.events[i].Status == outbox.StatusSending {
			r.events[i].Status = outbox.StatusPending
			delete(r.leases, id)
			return nil
		}
	}
	return outbox.ErrEventNotFound
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outbox.StatusSent, "")
}

func (r *OutboxRepository) MarkDropped(_ context.Context, id, reason string) error {
	return r.mark(id, outbox.StatusDropped, reason)
}

func (r *OutboxRepository) mark(id string, status outbox.Status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = status
			r.events[i].LastError = reason
			delete(r.leases, id)
			return nil
		}
	}
	return outbox.ErrEventNotFound
}

// Events returns a snapshot of everything recorded so far.
func (r *OutboxRepository) Events() []outbox.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.OutboxEvent(nil), r.events...)
}
