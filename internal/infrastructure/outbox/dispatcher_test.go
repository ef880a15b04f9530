package outbox_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/outbox"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/inmemory"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	calls    int
	failures int
	delay    time.Duration
	onSend   func()
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.onSend != nil {
		f.onSend()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return errors.New("telegram down")
	}
	f.sent = append(f.sent, text)
	return nil
}

type noopLogger struct{}

func (n *noopLogger) Info(string, map[string]any)  {}
func (n *noopLogger) Warn(string, map[string]any)  {}
func (n *noopLogger) Error(string, map[string]any) {}

func newDispatcher(repo outbox.Repository, sender *fakeSender, counters *metrics.Counters) *outbox.Dispatcher {
	return &outbox.Dispatcher{
		Repo:         repo,
		Sender:       sender,
		Logger:       &noopLogger{},
		Metrics:      counters,
		PollInterval: time.Millisecond,
		BatchSize:    10,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
	}
}

func TestDispatcher_ShouldSendAndMarkEvent(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewSQLiteRepository(setupTestDB(t))
	sender := &fakeSender{}
	counters := &metrics.Counters{}

	recorder := &outbox.Recorder{Repo: repo}
	require.NoError(t, recorder.Send(ctx, "Payment succeeded\nID: pay-1"))

	newDispatcher(repo, sender, counters).DispatchOnce(ctx)

	require.Equal(t, []string{"Payment succeeded\nID: pay-1"}, sender.sent)
	require.Equal(t, uint64(1), counters.Snapshot().NotificationsSent)

	// sent events stay out even after any lease would have expired
	later := time.Now().Add(time.Hour)
	events, err := repo.Claim(ctx, 10, later, later.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestDispatcher_ConcurrentDispatchersDeliverEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewSQLiteRepository(setupFileDB(t))
	sender := &fakeSender{delay: 2 * time.Millisecond}

	const total = 20
	recorder := &outbox.Recorder{Repo: repo}
	for i := range total {
		require.NoError(t, recorder.Send(ctx, fmt.Sprintf("message %d", i)))
	}

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := newDispatcher(repo, sender, nil)
			d.BatchSize = total
			d.DispatchOnce(ctx)
		}()
	}
	wg.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, total)
	seen := make(map[string]int)
	for _, text := range sender.sent {
		seen[text]++
	}
	for i := range total {
		require.Equal(t, 1, seen[fmt.Sprintf("message %d", i)])
	}
}

func TestDispatcher_WhenCanceledMidDelivery_ShouldReleaseEvent(t *testing.T) {
	repo := inmemory.NewOutboxRepository()
	require.NoError(t, (&outbox.Recorder{Repo: repo}).Send(context.Background(), "late"))

	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{failures: -1, onSend: cancel}

	newDispatcher(repo, sender, nil).DispatchOnce(ctx)

	require.Empty(t, sender.sent)
	require.Equal(t, outbox.StatusPending, repo.Events()[0].Status)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewOutboxRepository()
	sender := &fakeSender{failures: 2}

	require.NoError(t, (&outbox.Recorder{Repo: repo}).Send(ctx, "hello"))

	newDispatcher(repo, sender, nil).DispatchOnce(ctx)

	require.Equal(t, 3, sender.calls)
	require.Equal(t, []string{"hello"}, sender.sent)
	require.Equal(t, outbox.StatusSent, repo.Events()[0].Status)
}

func TestDispatcher_DropsAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewOutboxRepository()
	sender := &fakeSender{failures: -1}
	counters := &metrics.Counters{}

	recorder := &outbox.Recorder{Repo: repo}
	require.NoError(t, recorder.Send(ctx, "first"))
	require.NoError(t, recorder.Send(ctx, "second"))

	newDispatcher(repo, sender, counters).DispatchOnce(ctx)

	require.Equal(t, 6, sender.calls)
	require.Empty(t, sender.sent)
	require.Equal(t, uint64(2), counters.Snapshot().NotificationsDropped)

	for _, evt := range repo.Events() {
		require.Equal(t, outbox.StatusDropped, evt.Status)
		require.Contains(t, evt.LastError, "telegram down")
	}
}

func TestDispatcher_RunStopsWithContext(t *testing.T) {
	repo := inmemory.NewOutboxRepository()
	sender := &fakeSender{}
	require.NoError(t, (&outbox.Recorder{Repo: repo}).Send(context.Background(), "tick"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newDispatcher(repo, sender, nil).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
