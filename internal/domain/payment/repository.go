package payment

import (
	"context"
	"errors"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found")

// UpdateFunc mutates a payment inside a single-record transaction.
// Returning an error aborts the transaction and leaves the record untouched.
type UpdateFunc func(*Payment) error

type Repository interface {
	Save(context.Context, *Payment) error
	FindByID(context.Context, string) (*Payment, error)
	FindByRemoteID(context.Context, string) (*Payment, error)
	// FindDueRetries returns canceled payments whose retry time is at or before now.
	FindDueRetries(context.Context, time.Time) ([]*Payment, error)
	// Update locks the record, applies fn to a copy and persists the copy
	// atomically. The stored state after commit is returned.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Payment, error)
}
