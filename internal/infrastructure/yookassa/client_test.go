package yookassa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/yookassa"
)

func TestClient_CreatePayment(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/payments", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("Idempotence-Key"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "shop", user)
		require.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "2d3f-remote",
			"status": "pending",
			"confirmation": {"type": "redirect", "confirmation_url": "https://yoomoney.ru/checkout/2d3f"}
		}`))
	}))
	defer srv.Close()

	client := &yookassa.Client{
		ShopID:    "shop",
		SecretKey: "secret",
		BaseURL:   srv.URL + "/v3",
		ReturnURL: "https://example.com/return",
		HTTP:      srv.Client(),
	}

	remote, err := client.CreatePayment(context.Background(), payment.Charge{
		Amount:         decimal.RequireFromString("250.5"),
		Currency:       "RUB",
		Description:    "Gym membership (attempt 2)",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.Equal(t, "2d3f-remote", remote.ID)
	require.Equal(t, "https://yoomoney.ru/checkout/2d3f", remote.ConfirmationURL)

	require.Equal(t, map[string]any{"value": "250.50", "currency": "RUB"}, got["amount"])
	require.Equal(t, true, got["capture"])
	require.Equal(t, "Gym membership (attempt 2)", got["description"])
	require.Equal(t, map[string]any{"type": "redirect", "return_url": "https://example.com/return"}, got["confirmation"])
}

func TestClient_CreatePayment_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","code":"invalid_request","description":"amount is invalid"}`))
	}))
	defer srv.Close()

	client := &yookassa.Client{BaseURL: srv.URL, HTTP: srv.Client()}

	_, err := client.CreatePayment(context.Background(), payment.Charge{
		Amount:   decimal.NewFromInt(1),
		Currency: "RUB",
	})

	var apiErr *yookassa.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "invalid_request", apiErr.Code)
}

func TestClient_CreatePayment_MissingConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p-1","status":"pending"}`))
	}))
	defer srv.Close()

	client := &yookassa.Client{BaseURL: srv.URL, HTTP: srv.Client()}

	_, err := client.CreatePayment(context.Background(), payment.Charge{Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, yookassa.ErrMissingConfirmation)
}

func TestClient_CreateRefund(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refunds", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("Idempotence-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"rf-1","status":"succeeded"}`))
	}))
	defer srv.Close()

	client := &yookassa.Client{BaseURL: srv.URL, HTTP: srv.Client()}

	id, err := client.CreateRefund(context.Background(), "p-1", decimal.NewFromInt(100), "RUB")
	require.NoError(t, err)
	require.Equal(t, "rf-1", id)
	require.Equal(t, "p-1", got["payment_id"])
	require.Equal(t, map[string]any{"value": "100.00", "currency": "RUB"}, got["amount"])
}
