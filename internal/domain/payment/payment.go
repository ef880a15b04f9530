package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCanceled  Status = "canceled"
	StatusRefunded  Status = "refunded"
)

// MaxAttempts bounds how many remote payments are created for one record.
const MaxAttempts = 3

var (
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrSameStatus        = errors.New("payment already in target status")
	ErrNotRetryable      = errors.New("payment not eligible for retry")
)

type Payment struct {
	ID          string
	RemoteID    string
	Amount      decimal.Decimal
	Description string
	Status      Status
	Attempts    int
	CreatedAt   time.Time
	RetryAt     *time.Time
}

func New(id, remoteID string, amount decimal.Decimal, description string, now time.Time) *Payment {
	return &Payment{
		ID:          id,
		RemoteID:    remoteID,
		Amount:      amount,
		Description: description,
		Status:      StatusPending,
		Attempts:    1,
		CreatedAt:   now,
	}
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusSucceeded, StatusCanceled},
	StatusCanceled:  {StatusPending, StatusSucceeded},
	StatusSucceeded: {StatusRefunded},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (p *Payment) transition(next Status) error {
	if p.Status == next {
		return ErrSameStatus
	}
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	p.Status = next
	return nil
}

func (p *Payment) MarkSucceeded() error {
	if err := p.transition(StatusSucceeded); err != nil {
		return err
	}
	p.RetryAt = nil
	return nil
}

// MarkCanceled moves the payment to canceled and schedules the next attempt
// at now+delay while attempts remain. It reports whether a retry was scheduled.
func (p *Payment) MarkCanceled(now time.Time, delay time.Duration) (bool, error) {
	if err := p.transition(StatusCanceled); err != nil {
		return false, err
	}
	if p.Attempts >= MaxAttempts {
		p.RetryAt = nil
		return false, nil
	}
	at := now.Add(delay)
	p.RetryAt = &at
	return true, nil
}

func (p *Payment) MarkRefunded() error {
	return p.transition(StatusRefunded)
}

// RetryDue reports whether a scan at now may start the next attempt.
func (p *Payment) RetryDue(now time.Time) bool {
	return p.Status == StatusCanceled &&
		p.Attempts < MaxAttempts &&
		p.RetryAt != nil &&
		!p.RetryAt.After(now)
}

// Exhausted reports a canceled payment with no attempts left.
func (p *Payment) Exhausted() bool {
	return p.Status == StatusCanceled && p.Attempts >= MaxAttempts
}

// NextAttempt is the attempt number the next retry would carry.
func (p *Payment) NextAttempt() int {
	return p.Attempts + 1
}

// BeginRetry records a new remote payment for the next attempt.
func (p *Payment) BeginRetry(now time.Time, remoteID string) error {
	if !p.RetryDue(now) {
		return ErrNotRetryable
	}
	p.Attempts++
	p.RemoteID = remoteID
	p.Status = StatusPending
	p.RetryAt = nil
	return nil
}

func (p *Payment) Clone() *Payment {
	c := *p
	if p.RetryAt != nil {
		at := *p.RetryAt
		c.RetryAt = &at
	}
	return &c
}
