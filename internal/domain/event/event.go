package event

type Type string

const (
	PaymentCreated   Type = "PAYMENT_CREATED"
	PaymentSucceeded Type = "PAYMENT_SUCCEEDED"
	PaymentCanceled  Type = "PAYMENT_CANCELED"
	RetryScheduled   Type = "RETRY_SCHEDULED"
	RetriesExhausted Type = "RETRIES_EXHAUSTED"
	PaymentRetried   Type = "PAYMENT_RETRIED"
	RefundRequested  Type = "REFUND_REQUESTED"
	PaymentRefunded  Type = "PAYMENT_REFUNDED"
)

type Event struct {
	Type    Type
	Payload any
}
