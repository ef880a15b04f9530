package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/lifecycle"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/metrics"
)

const maxBodyBytes = 1 << 20

type PaymentService interface {
	Create(ctx context.Context, amount decimal.Decimal, description string) (*lifecycle.Created, error)
	Get(ctx context.Context, id string) (*payment.Payment, error)
	ApplyEvent(ctx context.Context, n payment.Notification) (lifecycle.Outcome, error)
	Refund(ctx context.Context, remoteID string) (string, error)
	ScanAndRetry(ctx context.Context) (int, error)
}

// NotificationDecoder parses a processor webhook body.
type NotificationDecoder func(io.Reader) (payment.Notification, error)

type PaymentHandler struct {
	Service PaymentService
	Decode  NotificationDecoder
	Metrics *metrics.Counters
	Logger  logging.Logger
	// Ready reports whether storage is reachable. Optional.
	Ready func(context.Context) error
}

type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type CreatePaymentResponse struct {
	ID              string `json:"id"`
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

type PaymentResponse struct {
	ID          string     `json:"id"`
	PaymentID   string     `json:"payment_id"`
	Amount      string     `json:"amount"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.Service.Create(r.Context(), req.Amount, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatePaymentResponse{
		ID:              created.Payment.ID,
		PaymentID:       created.Payment.RemoteID,
		ConfirmationURL: created.ConfirmationURL,
	})
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentResponse{
		ID:          p.ID,
		PaymentID:   p.RemoteID,
		Amount:      p.Amount.StringFixed(2),
		Description: p.Description,
		Status:      string(p.Status),
		Attempts:    p.Attempts,
		CreatedAt:   p.CreatedAt,
		RetryAt:     p.RetryAt,
	})
}

// Webhook answers 200 for every well-formed notification the service could
// process, including ones it ignored, so the processor stops redelivering.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	n, err := h.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Warn("malformed webhook", map[string]any{"error": err.Error()})
		http.Error(w, "malformed notification", http.StatusBadRequest)
		return
	}

	outcome, err := h.Service.ApplyEvent(r.Context(), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"outcome": string(outcome),
	})
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	refundID, err := h.Service.Refund(r.Context(), r.PathValue("payment_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"refund_id": refundID})
}

func (h *PaymentHandler) TriggerRetries(w http.ResponseWriter, r *http.Request) {
	retried, err := h.Service.ScanAndRetry(r.Context())
	if err != nil {
		h.Logger.Error("manual retry scan finished with errors", map[string]any{
			"retried": retried,
			"error":   err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]int{"retried": retried})
}

func (h *PaymentHandler) MetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

func (h *PaymentHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *PaymentHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidAmount),
		errors.Is(err, lifecycle.ErrInvalidDescription),
		errors.Is(err, lifecycle.ErrNotRefundable):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrProcessor):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
