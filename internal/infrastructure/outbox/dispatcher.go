package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/contracts"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultLease       = 5 * time.Minute
	releaseTimeout     = 2 * time.Second
)

// Dispatcher delivers queued messages. Each message gets MaxAttempts tries
// with exponential backoff starting at BaseDelay and doubling; after that it
// is logged and dropped. Messages are claimed for Lease before delivery, so
// dispatchers sharing a store never send the same message twice.
type Dispatcher struct {
	Repo         Repository
	Sender       contracts.Notifier
	Logger       logging.Logger
	Metrics      *metrics.Counters
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  uint
	BaseDelay    time.Duration
	SendTimeout  time.Duration
	Lease        time.Duration
	Now          func() time.Time
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	lease := d.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	now := d.now()

	events, err := d.Repo.Claim(ctx, d.BatchSize, now, now.Add(lease))
	if err != nil {
		d.Logger.Error("outbox poll failed", map[string]any{"error": err.Error()})
		return
	}

	for i, evt := range events {
		if ctx.Err() != nil {
			d.release(ctx, events[i:])
			return
		}
		d.deliver(ctx, evt)
	}
}

// release returns claimed events to the pending set after ctx was canceled.
func (d *Dispatcher) release(ctx context.Context, events []OutboxEvent) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	for _, evt := range events {
		if err := d.Repo.Release(rctx, evt.ID); err != nil {
			d.Logger.Error("outbox release failed", map[string]any{
				"outbox-id": evt.ID,
				"error":     err.Error(),
			})
		}
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) deliver(ctx context.Context, evt OutboxEvent) {
	maxAttempts := d.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = defaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = defaultBaseDelay
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, d.send(ctx, evt)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.Logger.Warn("notification attempt failed", map[string]any{
				"outbox-id": evt.ID,
				"attempt":   attempt,
				"retry-in":  next.String(),
				"error":     err.Error(),
			})
		}),
	)

	if err != nil {
		if ctx.Err() != nil {
			d.release(ctx, []OutboxEvent{evt})
			return
		}
		d.Logger.Error("notification dropped", map[string]any{
			"outbox-id": evt.ID,
			"attempts":  attempt,
			"error":     err.Error(),
			"message":   string(evt.Payload),
		})
		if err := d.Repo.MarkDropped(ctx, evt.ID, err.Error()); err != nil {
			d.Logger.Error("outbox mark dropped failed", map[string]any{
				"outbox-id": evt.ID,
				"error":     err.Error(),
			})
		}
		if d.Metrics != nil {
			d.Metrics.IncNotificationDropped()
		}
		return
	}

	if err := d.Repo.MarkSent(ctx, evt.ID); err != nil {
		d.Logger.Error("outbox mark sent failed", map[string]any{
			"outbox-id": evt.ID,
			"error":     err.Error(),
		})
	}
	if d.Metrics != nil {
		d.Metrics.IncNotificationSent()
	}
}

func (d *Dispatcher) send(ctx context.Context, evt OutboxEvent) error {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	return d.Sender.Send(ctx, string(evt.Payload))
}
