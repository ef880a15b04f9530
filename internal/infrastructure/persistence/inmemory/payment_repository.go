package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

var ErrDuplicatePayment = errors.New("payment already exists")

// PaymentRepository keeps payments in memory. Update serializes writers per
// payment id; readers always get copies.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*payment.Payment
	byRemote map[string]string
	locks    map[string]*sync.Mutex
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*payment.Payment),
		byRemote: make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *PaymentRepository) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return ErrDuplicatePayment
	}
	if _, exists := r.byRemote[p.RemoteID]; exists {
		return ErrDuplicatePayment
	}

	r.payments[p.ID] = p.Clone()
	r.byRemote[p.RemoteID] = p.ID
	r.locks[p.ID] = &sync.Mutex{}
	return nil
}

func (r *PaymentRepository) FindByID(_ context.Context, id string) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) FindByRemoteID(_ context.Context, remoteID string) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRemote[remoteID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return r.payments[id].Clone(), nil
}

func (r *PaymentRepository) FindDueRetries(_ context.Context, now time.Time) ([]*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*payment.Payment
	for _, p := range r.payments {
		if p.Status == payment.StatusCanceled && p.RetryAt != nil && !p.RetryAt.After(now) {
			due = append(due, p.Clone())
		}
	}

	slices.SortFunc(due, func(a, b *payment.Payment) int {
		return a.RetryAt.Compare(*b.RetryAt)
	})
	return due, nil
}

func (r *PaymentRepository) Update(_ context.Context, id string, fn payment.UpdateFunc) (*payment.Payment, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.payments[id].Clone()
	r.mu.RUnlock()

	if err := fn(current); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.payments[id]
	if old.RemoteID != current.RemoteID {
		if owner, taken := r.byRemote[current.RemoteID]; taken && owner != id {
			return nil, ErrDuplicatePayment
		}
		delete(r.byRemote, old.RemoteID)
		r.byRemote[current.RemoteID] = id
	}
	r.payments[id] = current

	return current.Clone(), nil
}

// Payments returns copies of every stored payment.
func (r *PaymentRepository) Payments() map[string]*payment.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*payment.Payment, len(r.payments))
	for id, p := range r.payments {
		out[id] = p.Clone()
	}
	return out
}
