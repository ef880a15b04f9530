package yookassa

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

var ErrMalformedNotification = errors.New("yookassa: malformed notification")

type notificationBody struct {
	Type   string      `json:"type"`
	Event  string      `json:"event"`
	Object *objectBody `json:"object"`
}

type objectBody struct {
	ID                  string  `json:"id"`
	PaymentID           string  `json:"payment_id"`
	Amount              *amount `json:"amount"`
	CancellationDetails *struct {
		Party  string `json:"party"`
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
}

// DecodeNotification turns an incoming webhook body into a payment
// notification. Events this service does not handle decode to
// payment.Unrecognized.
func DecodeNotification(r io.Reader) (payment.Notification, error) {
	var body notificationBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}
	if body.Event == "" || body.Object == nil {
		return nil, fmt.Errorf("%w: event and object are required", ErrMalformedNotification)
	}

	obj := body.Object

	switch body.Event {
	case payment.KindSucceeded:
		if obj.ID == "" {
			return nil, fmt.Errorf("%w: object.id is required", ErrMalformedNotification)
		}
		return payment.Succeeded{PaymentID: obj.ID}, nil

	case payment.KindCanceled:
		if obj.ID == "" {
			return nil, fmt.Errorf("%w: object.id is required", ErrMalformedNotification)
		}
		n := payment.Canceled{PaymentID: obj.ID}
		if obj.CancellationDetails != nil {
			n.Reason = obj.CancellationDetails.Reason
		}
		return n, nil

	case payment.KindRefundSucceeded:
		if obj.PaymentID == "" {
			return nil, fmt.Errorf("%w: object.payment_id is required", ErrMalformedNotification)
		}
		if obj.Amount == nil {
			return nil, fmt.Errorf("%w: object.amount is required", ErrMalformedNotification)
		}
		value, err := decimal.NewFromString(obj.Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: object.amount.value: %w", ErrMalformedNotification, err)
		}
		return payment.RefundSucceeded{
			RefundID:  obj.ID,
			PaymentID: obj.PaymentID,
			Amount:    value,
			Currency:  obj.Amount.Currency,
		}, nil

	default:
		return payment.Unrecognized{Name: body.Event, ObjectID: obj.ID}, nil
	}
}
