package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Charge struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

type RemotePayment struct {
	ID              string
	ConfirmationURL string
}

// Processor is the third-party payment provider.
type Processor interface {
	CreatePayment(ctx context.Context, charge Charge) (*RemotePayment, error)
	CreateRefund(ctx context.Context, remoteID string, amount decimal.Decimal, currency string) (string, error)
}
