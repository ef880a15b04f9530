package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/application/contracts"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/event"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
	"github.com/rcarvalho-pb/payment_mediator-go/internal/infra/logging"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidDescription = errors.New("description is required")
	ErrNotRefundable      = errors.New("payment not succeeded")
	ErrProcessor          = errors.New("payment processor error")
)

var (
	errSuperseded = errors.New("notification for superseded remote payment")
	errNotDue     = errors.New("payment no longer due for retry")
)

var tracer = otel.Tracer("github.com/rcarvalho-pb/payment_mediator-go/internal/application/lifecycle")

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type Policy struct {
	Currency         string
	RetryDelay       time.Duration
	ProcessorTimeout time.Duration
}

// Service owns every status, attempts and retryAt change of a payment.
type Service struct {
	Repo      payment.Repository
	Processor payment.Processor
	Events    contracts.EventPublisher
	Locker    contracts.Locker
	Logger    logging.Logger
	Policy    Policy
	Now       func() time.Time
}

type Created struct {
	Payment         *payment.Payment
	ConfirmationURL string
}

func (s *Service) Create(ctx context.Context, amount decimal.Decimal, description string) (*Created, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Create")
	defer span.End()

	description = strings.TrimSpace(description)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		return nil, ErrInvalidDescription
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("payment.id", id))

	remote, err := s.createRemote(ctx, payment.Charge{
		Amount:         amount,
		Currency:       s.Policy.Currency,
		Description:    description,
		IdempotencyKey: idempotencyKey(id, 1),
	})
	if err != nil {
		fail(span, err)
		s.Logger.Error("remote payment creation failed", map[string]any{
			"payment-id": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	p := payment.New(id, remote.ID, amount, description, s.now())
	if err := s.Repo.Save(ctx, p); err != nil {
		fail(span, err)
		s.Logger.Error("payment not persisted after remote creation", map[string]any{
			"payment-id": id,
			"remote-id":  remote.ID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.Logger.Info("payment created", map[string]any{
		"payment-id": p.ID,
		"remote-id":  p.RemoteID,
		"amount":     p.Amount.StringFixed(2),
	})

	s.publish(ctx, event.Event{
		Type: event.PaymentCreated,
		Payload: event.PaymentCreatedPayload{
			PaymentRef:      s.ref(p),
			ConfirmationURL: remote.ConfirmationURL,
		},
	})

	return &Created{Payment: p, ConfirmationURL: remote.ConfirmationURL}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.Repo.FindByID(ctx, id)
}

// ApplyEvent reconciles a processor notification with the stored payment.
// Unknown payments, unknown kinds and forbidden transitions are ignored so
// the processor does not redeliver them.
func (s *Service) ApplyEvent(ctx context.Context, n payment.Notification) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ApplyEvent", trace.WithAttributes(
		attribute.String("payment.remote_id", n.RemoteID()),
		attribute.String("event.kind", n.Kind()),
	))
	defer span.End()

	var (
		outcome Outcome
		err     error
	)

	switch n := n.(type) {
	case payment.Succeeded:
		outcome, err = s.apply(ctx, n, func(p *payment.Payment, _ time.Time) ([]event.Event, error) {
			if err := p.MarkSucceeded(); err != nil {
				return nil, err
			}
			return []event.Event{{
				Type:    event.PaymentSucceeded,
				Payload: event.PaymentSucceededPayload{PaymentRef: s.ref(p)},
			}}, nil
		})

	case payment.Canceled:
		outcome, err = s.apply(ctx, n, func(p *payment.Payment, now time.Time) ([]event.Event, error) {
			scheduled, err := p.MarkCanceled(now, s.Policy.RetryDelay)
			if err != nil {
				return nil, err
			}

			events := []event.Event{{
				Type: event.PaymentCanceled,
				Payload: event.PaymentCanceledPayload{
					PaymentRef: s.ref(p),
					Reason:     n.CancelReason(),
				},
			}}

			if scheduled {
				return append(events, event.Event{
					Type: event.RetryScheduled,
					Payload: event.RetryScheduledPayload{
						PaymentRef:  s.ref(p),
						RetryAt:     *p.RetryAt,
						Delay:       s.Policy.RetryDelay,
						NextAttempt: p.NextAttempt(),
						MaxAttempts: payment.MaxAttempts,
					},
				}), nil
			}

			return append(events, event.Event{
				Type: event.RetriesExhausted,
				Payload: event.RetriesExhaustedPayload{
					PaymentRef: s.ref(p),
					Attempts:   p.Attempts,
				},
			}), nil
		})

	case payment.RefundSucceeded:
		outcome, err = s.apply(ctx, n, func(p *payment.Payment, _ time.Time) ([]event.Event, error) {
			if err := p.MarkRefunded(); err != nil {
				return nil, err
			}
			currency := n.Currency
			if currency == "" {
				currency = s.Policy.Currency
			}
			return []event.Event{{
				Type: event.PaymentRefunded,
				Payload: event.PaymentRefundedPayload{
					PaymentRef:       s.ref(p),
					RefundedAmount:   n.Amount,
					RefundedCurrency: currency,
				},
			}}, nil
		})

	default:
		s.Logger.Info("notification ignored", map[string]any{
			"event":     n.Kind(),
			"remote-id": n.RemoteID(),
		})
		outcome = OutcomeIgnored
	}

	if err != nil {
		fail(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("event.outcome", string(outcome)))
	return outcome, nil
}

type mutation func(p *payment.Payment, now time.Time) ([]event.Event, error)

func (s *Service) apply(ctx context.Context, n payment.Notification, mutate mutation) (Outcome, error) {
	remoteID := n.RemoteID()
	fields := map[string]any{
		"remote-id": remoteID,
		"event":     n.Kind(),
	}

	current, err := s.Repo.FindByRemoteID(ctx, remoteID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		s.Logger.Warn("notification for unknown payment", fields)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("find payment by remote id %s: %w", remoteID, err)
	}
	fields["payment-id"] = current.ID

	var events []event.Event
	_, err = s.Repo.Update(ctx, current.ID, func(p *payment.Payment) error {
		if p.RemoteID != remoteID {
			return errSuperseded
		}
		evts, err := mutate(p, s.now())
		if err != nil {
			return err
		}
		events = evts
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, payment.ErrSameStatus):
		s.Logger.Info("duplicate notification", fields)
		return OutcomeDuplicate, nil
	case errors.Is(err, payment.ErrInvalidTransition):
		fields["status"] = string(current.Status)
		s.Logger.Warn("notification rejected by state machine", fields)
		return OutcomeIgnored, nil
	case errors.Is(err, errSuperseded), errors.Is(err, payment.ErrPaymentNotFound):
		s.Logger.Warn(err.Error(), fields)
		return OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("apply %s to payment %s: %w", n.Kind(), current.ID, err)
	}

	s.Logger.Info("notification applied", fields)
	for _, evt := range events {
		s.publish(ctx, evt)
	}
	return OutcomeApplied, nil
}

// Refund asks the processor to refund a succeeded payment in full. The status
// changes only when the refund.succeeded notification arrives.
func (s *Service) Refund(ctx context.Context, remoteID string) (string, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Refund", trace.WithAttributes(
		attribute.String("payment.remote_id", remoteID),
	))
	defer span.End()

	p, err := s.Repo.FindByRemoteID(ctx, remoteID)
	if err != nil {
		fail(span, err)
		return "", err
	}
	if p.Status != payment.StatusSucceeded {
		return "", ErrNotRefundable
	}

	pctx, cancel := s.processorContext(ctx)
	defer cancel()

	refundID, err := s.Processor.CreateRefund(pctx, p.RemoteID, p.Amount, s.Policy.Currency)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrProcessor, err)
		fail(span, err)
		return "", err
	}

	s.Logger.Info("refund requested", map[string]any{
		"payment-id": p.ID,
		"remote-id":  p.RemoteID,
		"refund-id":  refundID,
	})

	s.publish(ctx, event.Event{
		Type: event.RefundRequested,
		Payload: event.RefundRequestedPayload{
			PaymentRef: s.ref(p),
			RefundID:   refundID,
		},
	})

	return refundID, nil
}

// ScanAndRetry starts the next attempt for every canceled payment whose retry
// time has passed. Failures of individual payments are joined into the error;
// those payments stay canceled and are picked up by a later scan.
func (s *Service) ScanAndRetry(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.ScanAndRetry")
	defer span.End()

	now := s.now()
	due, err := s.Repo.FindDueRetries(ctx, now)
	if err != nil {
		fail(span, err)
		return 0, fmt.Errorf("find due retries: %w", err)
	}

	retried := 0
	var errs []error
	for _, p := range due {
		ok, err := s.retry(ctx, p.ID, now)
		if err != nil {
			s.Logger.Error("payment retry failed", map[string]any{
				"payment-id": p.ID,
				"error":      err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		if ok {
			retried++
		}
	}

	span.SetAttributes(
		attribute.Int("retry.due", len(due)),
		attribute.Int("retry.retried", retried),
	)

	if err := errors.Join(errs...); err != nil {
		fail(span, err)
		return retried, err
	}
	return retried, nil
}

func (s *Service) retry(ctx context.Context, id string, now time.Time) (bool, error) {
	if s.Locker != nil {
		release, err := s.Locker.Lock(ctx, "payment-retry:"+id)
		if err != nil {
			s.Logger.Info("retry skipped, payment locked", map[string]any{
				"payment-id": id,
				"error":      err.Error(),
			})
			return false, nil
		}
		defer release()
	}

	current, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("retry payment %s: %w", id, err)
	}

	// The processor call stays outside Repo.Update so a slow processor never
	// holds a store transaction open. The idempotency key makes a repeated
	// call for the same attempt return the same remote payment.
	attempt := current.NextAttempt()
	var remote *payment.RemotePayment
	if !current.Exhausted() {
		if !current.RetryDue(now) {
			s.Logger.Info("retry skipped, payment changed since scan", map[string]any{
				"payment-id": id,
			})
			return false, nil
		}
		remote, err = s.createRemote(ctx, payment.Charge{
			Amount:         current.Amount,
			Currency:       s.Policy.Currency,
			Description:    fmt.Sprintf("%s (attempt %d)", current.Description, attempt),
			IdempotencyKey: idempotencyKey(current.ID, attempt),
		})
		if err != nil {
			return false, fmt.Errorf("retry payment %s: %w", id, err)
		}
	}

	var evt event.Event
	_, err = s.Repo.Update(ctx, id, func(p *payment.Payment) error {
		if p.Exhausted() {
			if p.RetryAt == nil {
				return errNotDue
			}
			p.RetryAt = nil
			evt = event.Event{
				Type: event.RetriesExhausted,
				Payload: event.RetriesExhaustedPayload{
					PaymentRef: s.ref(p),
					Attempts:   p.Attempts,
				},
			}
			return nil
		}
		if remote == nil || p.NextAttempt() != attempt || !p.RetryDue(now) {
			return errNotDue
		}
		if err := p.BeginRetry(now, remote.ID); err != nil {
			return err
		}

		evt = event.Event{
			Type: event.PaymentRetried,
			Payload: event.PaymentRetriedPayload{
				PaymentRef:      s.ref(p),
				Attempt:         p.Attempts,
				MaxAttempts:     payment.MaxAttempts,
				ConfirmationURL: remote.ConfirmationURL,
			},
		}
		return nil
	})

	if errors.Is(err, errNotDue) {
		fields := map[string]any{"payment-id": id}
		if remote != nil {
			fields["unused-remote-id"] = remote.ID
		}
		s.Logger.Info("retry skipped, payment changed since scan", fields)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("retry payment %s: %w", id, err)
	}

	s.publish(ctx, evt)
	if evt.Type != event.PaymentRetried {
		s.Logger.Info("payment attempts exhausted", map[string]any{"payment-id": id})
		return false, nil
	}

	s.Logger.Info("payment retried", map[string]any{"payment-id": id})
	return true, nil
}

func (s *Service) createRemote(ctx context.Context, charge payment.Charge) (*payment.RemotePayment, error) {
	pctx, cancel := s.processorContext(ctx)
	defer cancel()

	remote, err := s.Processor.CreatePayment(pctx, charge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessor, err)
	}
	return remote, nil
}

func (s *Service) processorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Policy.ProcessorTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Policy.ProcessorTimeout)
}

func (s *Service) publish(ctx context.Context, evt event.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, evt); err != nil {
		s.Logger.Error("event handling failed", map[string]any{
			"event": string(evt.Type),
			"error": err.Error(),
		})
	}
}

func (s *Service) ref(p *payment.Payment) event.PaymentRef {
	return event.PaymentRef{
		PaymentID:   p.ID,
		RemoteID:    p.RemoteID,
		Description: p.Description,
		Amount:      p.Amount,
		Currency:    s.Policy.Currency,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
