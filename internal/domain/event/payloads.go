package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRef identifies the record a payload talks about.
type PaymentRef struct {
	PaymentID   string
	RemoteID    string
	Description string
	Amount      decimal.Decimal
	Currency    string
}

type PaymentCreatedPayload struct {
	PaymentRef
	ConfirmationURL string
}

type PaymentSucceededPayload struct {
	PaymentRef
}

type PaymentCanceledPayload struct {
	PaymentRef
	Reason string
}

type RetryScheduledPayload struct {
	PaymentRef
	RetryAt     time.Time
	Delay       time.Duration
	NextAttempt int
	MaxAttempts int
}

type RetriesExhaustedPayload struct {
	PaymentRef
	Attempts int
}

type PaymentRetriedPayload struct {
	PaymentRef
	Attempt         int
	MaxAttempts     int
	ConfirmationURL string
}

type RefundRequestedPayload struct {
	PaymentRef
	RefundID string
}

// PaymentRefundedPayload carries the settled amount reported by the
// processor, which may differ from PaymentRef.Amount.
type PaymentRefundedPayload struct {
	PaymentRef
	RefundedAmount   decimal.Decimal
	RefundedCurrency string
}
