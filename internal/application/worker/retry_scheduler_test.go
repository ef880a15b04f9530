package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/worker"
)

type fakeRetrier struct {
	calls  atomic.Int32
	scanFn func(context.Context) (int, error)
}

func (f *fakeRetrier) ScanAndRetry(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.scanFn != nil {
		return f.scanFn(ctx)
	}
	return 0, nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(string, map[string]any) {}
func (l *recordingLogger) Warn(string, map[string]any) {}
func (l *recordingLogger) Error(msg string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestRetryScheduler_RunOnce_ShouldApplyTimeout(t *testing.T) {
	var hadDeadline bool
	retrier := &fakeRetrier{
		scanFn: func(ctx context.Context) (int, error) {
			_, hadDeadline = ctx.Deadline()
			return 1, nil
		},
	}

	s := &worker.RetryScheduler{
		Retrier: retrier,
		Timeout: time.Second,
		Logger:  &recordingLogger{},
	}
	s.RunOnce(context.Background())

	require.Equal(t, int32(1), retrier.calls.Load())
	require.True(t, hadDeadline)
}

func TestRetryScheduler_RunOnce_ShouldLogScanErrors(t *testing.T) {
	logger := &recordingLogger{}
	s := &worker.RetryScheduler{
		Retrier: &fakeRetrier{
			scanFn: func(context.Context) (int, error) {
				return 0, errors.New("db locked")
			},
		},
		Logger: logger,
	}

	s.RunOnce(context.Background())
	require.Equal(t, []string{"retry scan finished with errors"}, logger.errors)
}

func TestRetryScheduler_ShouldScanOnInterval(t *testing.T) {
	retrier := &fakeRetrier{}
	s := &worker.RetryScheduler{
		Retrier:  retrier,
		Interval: time.Second,
		Logger:   &recordingLogger{},
	}

	require.NoError(t, s.Start())
	require.ErrorIs(t, s.Start(), worker.ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		return retrier.calls.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
