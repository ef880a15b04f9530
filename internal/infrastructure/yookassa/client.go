package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

const DefaultBaseURL = "https://api.yookassa.ru/v3"

var ErrMissingConfirmation = errors.New("yookassa: payment has no confirmation url")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("yookassa: http %d", e.StatusCode)
	}
	return fmt.Sprintf("yookassa: http %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client creates payments and refunds through the YooKassa REST API.
type Client struct {
	ShopID    string
	SecretKey string
	BaseURL   string
	ReturnURL string
	HTTP      *http.Client
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount       `json:"amount"`
	Confirmation confirmation `json:"confirmation"`
	Capture      bool         `json:"capture"`
	Description  string       `json:"description"`
}

type paymentResponse struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Confirmation confirmation `json:"confirmation"`
}

type createRefundRequest struct {
	Amount    amount `json:"amount"`
	PaymentID string `json:"payment_id"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Client) CreatePayment(ctx context.Context, charge payment.Charge) (*payment.RemotePayment, error) {
	req := createPaymentRequest{
		Amount: amount{Value: charge.Amount.StringFixed(2), Currency: charge.Currency},
		Confirmation: confirmation{
			Type:      "redirect",
			ReturnURL: c.ReturnURL,
		},
		Capture:     true,
		Description: charge.Description,
	}

	var resp paymentResponse
	if err := c.post(ctx, "/payments", charge.IdempotencyKey, req, &resp); err != nil {
		return nil, err
	}
	if resp.Confirmation.ConfirmationURL == "" {
		return nil, ErrMissingConfirmation
	}

	return &payment.RemotePayment{
		ID:              resp.ID,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

func (c *Client) CreateRefund(ctx context.Context, remoteID string, value decimal.Decimal, currency string) (string, error) {
	req := createRefundRequest{
		Amount:    amount{Value: value.StringFixed(2), Currency: currency},
		PaymentID: remoteID,
	}

	var resp refundResponse
	if err := c.post(ctx, "/refunds", uuid.NewString(), req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, path, idempotenceKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.ShopID, c.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotenceKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}
