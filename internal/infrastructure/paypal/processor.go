package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

var (
	ErrNoApprovalLink = errors.New("paypal: order has no approve link")
	ErrNoCapture      = errors.New("paypal: order has no completed capture")
)

// Processor creates PayPal checkout orders. The order id is the remote
// payment id; the approve link is the confirmation url.
type Processor struct {
	Client    *paypal.Client
	ReturnURL string
	CancelURL string
}

func New(clientID, secret string, sandbox bool) (*Processor, error) {
	base := paypal.APIBaseLive
	if sandbox {
		base = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, err
	}
	return &Processor{Client: client}, nil
}

func (p *Processor) CreatePayment(ctx context.Context, charge payment.Charge) (*payment.RemotePayment, error) {
	units := []paypal.PurchaseUnitRequest{
		{
			CustomID: charge.IdempotencyKey,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: strings.ToUpper(charge.Currency),
				Value:    charge.Amount.StringFixed(2),
			},
			Description: charge.Description,
		},
	}

	appCtx := &paypal.ApplicationContext{
		ReturnURL: p.ReturnURL,
		CancelURL: p.CancelURL,
	}

	order, err := p.Client.CreateOrder(ctx, "CAPTURE", units, nil, appCtx)
	if err != nil {
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" {
			return &payment.RemotePayment{ID: order.ID, ConfirmationURL: link.Href}, nil
		}
	}
	return nil, ErrNoApprovalLink
}

// CreateRefund refunds the first completed capture of the order.
func (p *Processor) CreateRefund(ctx context.Context, remoteID string, amount decimal.Decimal, currency string) (string, error) {
	order, err := p.Client.GetOrder(ctx, remoteID)
	if err != nil {
		return "", fmt.Errorf("paypal: get order: %w", err)
	}

	captureID := completedCapture(order)
	if captureID == "" {
		return "", ErrNoCapture
	}

	refund, err := p.Client.RefundCapture(ctx, captureID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: strings.ToUpper(currency),
			Value:    amount.StringFixed(2),
		},
	})
	if err != nil {
		return "", fmt.Errorf("paypal: refund capture: %w", err)
	}
	return refund.ID, nil
}

func completedCapture(order *paypal.Order) string {
	for _, unit := range order.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.Status == "COMPLETED" {
				return capture.ID
			}
		}
	}
	return ""
}
