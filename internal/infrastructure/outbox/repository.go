package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	// StatusSending marks an event claimed by a dispatcher until its lease
	// runs out.
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusDropped Status = "dropped"
)

// OutboxEvent is one operator message waiting for delivery.
type OutboxEvent struct {
	ID        string
	Payload   []byte
	Status    Status
	LastError string
	CreatedAt time.Time
}

type Repository interface {
	Save(context.Context, OutboxEvent) error
	// Claim atomically moves up to limit deliverable events, oldest first, to
	// StatusSending with a lease ending at leaseUntil and returns them. An
	// event is deliverable while pending or once an earlier lease expired
	// before now.
	Claim(ctx context.Context, limit int, now, leaseUntil time.Time) ([]OutboxEvent, error)
	// Release hands a claimed event back to the pending set.
	Release(context.Context, string) error
	MarkSent(context.Context, string) error
	MarkDropped(ctx context.Context, id, reason string) error
}
