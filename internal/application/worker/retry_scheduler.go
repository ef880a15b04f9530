package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
)

var ErrAlreadyStarted = errors.New("retry scheduler already started")

type Retrier interface {
	ScanAndRetry(ctx context.Context) (int, error)
}

// RetryScheduler is the clock for retry scans. Ticks never overlap: a tick
// that fires while the previous scan is running is skipped.
type RetryScheduler struct {
	Retrier  Retrier
	Interval time.Duration
	Timeout  time.Duration
	Logger   logging.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func (r *RetryScheduler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cronLogger{r.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.Interval), func() {
		r.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule retry scan: %w", err)
	}

	c.Start()
	r.cron = c

	r.Logger.Info("retry scheduler started", map[string]any{
		"interval": r.Interval.String(),
	})
	return nil
}

// Stop waits for a running scan to finish or ctx to expire.
func (r *RetryScheduler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		r.Logger.Info("retry scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RetryScheduler) RunOnce(ctx context.Context) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	retried, err := r.Retrier.ScanAndRetry(ctx)
	if err != nil {
		r.Logger.Error("retry scan finished with errors", map[string]any{
			"retried": retried,
			"error":   err.Error(),
		})
		return
	}
	if retried > 0 {
		r.Logger.Info("retry scan finished", map[string]any{
			"retried": retried,
		})
	}
}

type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info("cron: "+msg, fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	f := fields(keysAndValues)
	f["error"] = err.Error()
	l.logger.Error("cron: "+msg, f)
}

func fields(keysAndValues []any) map[string]any {
	out := make(map[string]any, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
