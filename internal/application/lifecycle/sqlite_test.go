package lifecycle_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/lifecycle"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/sqlite"
)

func TestScanAndRetry_SlowProcessor_ShouldNotBlockOtherWritersOnSQLite(t *testing.T) {
	db, err := sqlite.Open(sqlite.DriverModernc, filepath.Join(t.TempDir(), "payments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.RunMigrations(db))

	started := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	var remotes atomic.Int64
	processor := &fakeProcessor{
		createFn: func(charge payment.Charge) (*payment.RemotePayment, error) {
			if strings.HasSuffix(charge.Description, "(attempt 2)") {
				close(started)
				<-release
			}
			n := remotes.Add(1)
			return &payment.RemotePayment{
				ID:              fmt.Sprintf("rem-%d", n),
				ConfirmationURL: fmt.Sprintf("https://pay.example/confirm/%d", n),
			}, nil
		},
	}

	repo := sqlite.NewPaymentRepository(db)
	clk := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := &lifecycle.Service{
		Repo:      repo,
		Processor: processor,
		Events:    &recordingPublisher{},
		Logger:    &noopLogger{},
		Policy: lifecycle.Policy{
			Currency:         "RUB",
			RetryDelay:       retryDelay,
			ProcessorTimeout: time.Minute,
		},
		Now: clk.Now,
	}

	ctx := context.Background()
	slow, err := svc.Create(ctx, decimal.RequireFromString("10"), "slow retry")
	require.NoError(t, err)
	_, err = svc.ApplyEvent(ctx, payment.Canceled{PaymentID: slow.Payment.RemoteID})
	require.NoError(t, err)
	other, err := svc.Create(ctx, decimal.RequireFromString("20"), "paid meanwhile")
	require.NoError(t, err)
	clk.Advance(retryDelay)

	type scanResult struct {
		retried int
		err     error
	}
	done := make(chan scanResult, 1)
	go func() {
		n, err := svc.ScanAndRetry(ctx)
		done <- scanResult{n, err}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("retry never reached the processor")
	}

	// the retry is parked inside the processor call
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	outcome, err := svc.ApplyEvent(wctx, payment.Succeeded{PaymentID: other.Payment.RemoteID})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OutcomeApplied, outcome)
	_, err = svc.Create(wctx, decimal.RequireFromString("30"), "created meanwhile")
	require.NoError(t, err)

	unblock()
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, 1, res.retried)

	got, err := repo.FindByID(ctx, slow.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, got.Status)
	require.Equal(t, 2, got.Attempts)
	require.Nil(t, got.RetryAt)
}
