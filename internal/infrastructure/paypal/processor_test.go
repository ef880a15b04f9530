package paypal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/paypal"
)

func newProcessor(t *testing.T, mux *http.ServeMux) *paypal.Processor {
	t.Helper()

	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token-1","token_type":"Bearer","expires_in":32400}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := sdk.NewClient("client", "secret", srv.URL)
	require.NoError(t, err)

	return &paypal.Processor{
		Client:    client,
		ReturnURL: "https://example.com/return",
		CancelURL: "https://example.com/cancel",
	}
}

func TestProcessor_CreatePayment(t *testing.T) {
	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "ORDER-1",
			"status": "CREATED",
			"links": [
				{"href": "https://api.paypal.test/v2/checkout/orders/ORDER-1", "rel": "self", "method": "GET"},
				{"href": "https://www.paypal.test/checkoutnow?token=ORDER-1", "rel": "approve", "method": "GET"}
			]
		}`))
	})

	p := newProcessor(t, mux)

	remote, err := p.CreatePayment(context.Background(), payment.Charge{
		Amount:         decimal.RequireFromString("19.9"),
		Currency:       "usd",
		Description:    "Ebook",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", remote.ID)
	require.Equal(t, "https://www.paypal.test/checkoutnow?token=ORDER-1", remote.ConfirmationURL)

	require.Equal(t, "CAPTURE", got["intent"])
	units := got["purchase_units"].([]any)
	require.Len(t, units, 1)
	unit := units[0].(map[string]any)
	require.Equal(t, "key-1", unit["custom_id"])
	require.Equal(t, map[string]any{"currency_code": "USD", "value": "19.90"}, unit["amount"])
}

func TestProcessor_CreatePayment_NoApproveLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ORDER-2","status":"CREATED","links":[]}`))
	})

	p := newProcessor(t, mux)

	_, err := p.CreatePayment(context.Background(), payment.Charge{Amount: decimal.NewFromInt(1), Currency: "USD"})
	require.ErrorIs(t, err, paypal.ErrNoApprovalLink)
}

func TestProcessor_CreateRefund(t *testing.T) {
	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/checkout/orders/ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "ORDER-1",
			"status": "COMPLETED",
			"purchase_units": [{
				"payments": {"captures": [{"id": "CAP-1", "status": "COMPLETED"}]}
			}]
		}`))
	})
	mux.HandleFunc("POST /v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"REF-1","status":"COMPLETED"}`))
	})

	p := newProcessor(t, mux)

	id, err := p.CreateRefund(context.Background(), "ORDER-1", decimal.NewFromInt(5), "USD")
	require.NoError(t, err)
	require.Equal(t, "REF-1", id)
	require.Equal(t, map[string]any{"currency_code": "USD", "value": "5.00"}, got["amount"])
}
