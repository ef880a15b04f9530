package payment

import "github.com/shopspring/decimal"

// Notification is a processor status change, decoded once at the transport
// boundary. Exactly one of Succeeded, Canceled, RefundSucceeded or
// Unrecognized.
type Notification interface {
	RemoteID() string
	Kind() string
	notification()
}

const (
	KindSucceeded       = "payment.succeeded"
	KindCanceled        = "payment.canceled"
	KindRefundSucceeded = "refund.succeeded"
)

const UnknownCancelReason = "unknown"

type Succeeded struct {
	PaymentID string
}

type Canceled struct {
	PaymentID string
	Reason    string
}

// RefundSucceeded references the refunded payment, not the refund object.
type RefundSucceeded struct {
	RefundID  string
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
}

type Unrecognized struct {
	Name     string
	ObjectID string
}

func (n Succeeded) RemoteID() string       { return n.PaymentID }
func (n Canceled) RemoteID() string        { return n.PaymentID }
func (n RefundSucceeded) RemoteID() string { return n.PaymentID }
func (n Unrecognized) RemoteID() string    { return n.ObjectID }

func (Succeeded) Kind() string       { return KindSucceeded }
func (Canceled) Kind() string        { return KindCanceled }
func (RefundSucceeded) Kind() string { return KindRefundSucceeded }
func (n Unrecognized) Kind() string  { return n.Name }

func (Succeeded) notification()       {}
func (Canceled) notification()        {}
func (RefundSucceeded) notification() {}
func (Unrecognized) notification()    {}

// CancelReason returns the processor reason or UnknownCancelReason.
func (n Canceled) CancelReason() string {
	if n.Reason == "" {
		return UnknownCancelReason
	}
	return n.Reason
}
