package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/contracts"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
)

// Handler turns lifecycle events into operator messages.
type Handler struct {
	Notifier contracts.Notifier
}

// Types lists the events the handler formats.
func Types() []event.Type {
	return []event.Type{
		event.PaymentCreated,
		event.PaymentSucceeded,
		event.PaymentCanceled,
		event.RetryScheduled,
		event.RetriesExhausted,
		event.PaymentRetried,
		event.RefundRequested,
		event.PaymentRefunded,
	}
}

func (h *Handler) Handle(ctx context.Context, evt event.Event) error {
	text, ok := Format(evt)
	if !ok {
		return nil
	}
	if err := h.Notifier.Send(ctx, text); err != nil {
		return fmt.Errorf("notify %s: %w", evt.Type, err)
	}
	return nil
}

// Format renders the operator message for evt. It reports false for events
// the operator is not told about.
func Format(evt event.Event) (string, bool) {
	switch p := evt.Payload.(type) {
	case event.PaymentCreatedPayload:
		return lines(
			"New payment created",
			ref(p.PaymentRef),
			"Amount: "+money(p.PaymentRef),
			"Status: awaiting payment",
			"Link: "+p.ConfirmationURL,
		), true

	case event.PaymentSucceededPayload:
		return lines(
			"Payment succeeded",
			ref(p.PaymentRef),
			"Amount: "+money(p.PaymentRef),
			"Status: completed",
		), true

	case event.PaymentCanceledPayload:
		return lines(
			"Payment canceled",
			ref(p.PaymentRef),
			"Reason: "+p.Reason,
			"Status: canceled",
		), true

	case event.RetryScheduledPayload:
		return lines(
			"Retry scheduled",
			ref(p.PaymentRef),
			"When: in "+p.Delay.String(),
			fmt.Sprintf("Attempt: %d/%d", p.NextAttempt, p.MaxAttempts),
		), true

	case event.RetriesExhaustedPayload:
		return lines(
			"All attempts exhausted",
			ref(p.PaymentRef),
			fmt.Sprintf("Attempts: %d", p.Attempts),
			"Status: canceled permanently",
		), true

	case event.PaymentRetriedPayload:
		return lines(
			"Payment retry started",
			ref(p.PaymentRef),
			"Amount: "+money(p.PaymentRef),
			"Status: awaiting payment",
			fmt.Sprintf("Attempt: %d/%d", p.Attempt, p.MaxAttempts),
			"Link: "+p.ConfirmationURL,
		), true

	case event.RefundRequestedPayload:
		return lines(
			"Refund created",
			ref(p.PaymentRef),
			"Refund ID: "+p.RefundID,
			"Amount: "+money(p.PaymentRef),
		), true

	case event.PaymentRefundedPayload:
		return lines(
			"Refund completed",
			ref(p.PaymentRef),
			fmt.Sprintf("Amount: %s %s", p.RefundedAmount.StringFixed(2), p.RefundedCurrency),
			"Status: refunded",
		), true
	}
	return "", false
}

func ref(r event.PaymentRef) string {
	return lines("ID: "+r.RemoteID, "Purchase: "+r.Description)
}

func money(r event.PaymentRef) string {
	return r.Amount.StringFixed(2) + " " + r.Currency
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}
