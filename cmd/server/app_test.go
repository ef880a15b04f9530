package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/lifecycle"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/config"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/outbox"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/persistence/inmemory"
)

func TestApp_MemoryStoreEndToEnd(t *testing.T) {
	yk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"yk-1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://yoomoney.test/1"}}`))
	}))
	defer yk.Close()

	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.Processor.YooKassa.ShopID = "shop"
	cfg.Processor.YooKassa.SecretKey = "secret"
	cfg.Processor.YooKassa.BaseURL = yk.URL
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, logging.NewKratosLogger(io.Discard, "test", "error"))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()

	created, err := a.service.Create(ctx, decimal.NewFromInt(500), "Consultation")
	require.NoError(t, err)
	require.Equal(t, "https://yoomoney.test/1", created.ConfirmationURL)

	outcome, err := a.service.ApplyEvent(ctx, payment.Succeeded{PaymentID: "yk-1"})
	require.NoError(t, err)
	require.Equal(t, lifecycle.OutcomeApplied, outcome)

	a.dispatcher.DispatchOnce(ctx)

	snap := a.counters.Snapshot()
	require.Equal(t, uint64(1), snap.PaymentsCreated)
	require.Equal(t, uint64(1), snap.PaymentsSucceeded)
	require.Equal(t, uint64(2), snap.NotificationsSent)

	events := a.stores.outbox.(*inmemory.OutboxRepository).Events()
	require.Len(t, events, 2)
	for _, evt := range events {
		require.Equal(t, outbox.StatusSent, evt.Status)
	}

	require.NoError(t, a.stores.ready(ctx))
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := openStores(config.Store{Driver: "mongo"})
	require.Error(t, err)
}
