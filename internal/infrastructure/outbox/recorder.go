package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder queues operator messages. It satisfies contracts.Notifier so
// callers never wait on the delivery channel.
type Recorder struct {
	Repo Repository
}

func (r *Recorder) Send(ctx context.Context, text string) error {
	return r.Repo.Save(ctx, OutboxEvent{
		ID:        uuid.NewString(),
		Payload:   []byte(text),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}
