package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

type paymentModel struct {
	ID          string          `gorm:"primaryKey;size:36"`
	RemoteID    string          `gorm:"size:64;not null;uniqueIndex"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Description string          `gorm:"size:512;not null"`
	Status      string          `gorm:"size:16;not null;index:idx_payments_due,priority:1"`
	Attempts    int             `gorm:"not null"`
	CreatedAt   time.Time
	RetryAt     *time.Time `gorm:"index:idx_payments_due,priority:2"`
}

func (paymentModel) TableName() string { return "payments" }

func toModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID,
		RemoteID:    p.RemoteID,
		Amount:      p.Amount,
		Description: p.Description,
		Status:      string(p.Status),
		Attempts:    p.Attempts,
		CreatedAt:   p.CreatedAt.UTC(),
		RetryAt:     utc(p.RetryAt),
	}
}

func (m *paymentModel) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:          m.ID,
		RemoteID:    m.RemoteID,
		Amount:      m.Amount,
		Description: m.Description,
		Status:      payment.Status(m.Status),
		Attempts:    m.Attempts,
		CreatedAt:   m.CreatedAt.UTC(),
		RetryAt:     utc(m.RetryAt),
	}
}

// PaymentRepository stores payments through GORM. Update locks the row
// with SELECT ... FOR UPDATE on dialects that support it.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(toModel(p)).Error
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *PaymentRepository) FindByRemoteID(ctx context.Context, remoteID string) (*payment.Payment, error) {
	return r.first(r.db.WithContext(ctx), "remote_id = ?", remoteID)
}

func (r *PaymentRepository) FindDueRetries(ctx context.Context, now time.Time) ([]*payment.Payment, error) {
	var models []paymentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_at IS NOT NULL AND retry_at <= ?", string(payment.StatusCanceled), now.UTC()).
		Order("retry_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	due := make([]*payment.Payment, 0, len(models))
	for i := range models {
		due = append(due, models[i].toDomain())
	}
	return due, nil
}

func (r *PaymentRepository) Update(ctx context.Context, id string, fn payment.UpdateFunc) (*payment.Payment, error) {
	var updated *payment.Payment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() != "sqlite" {
			tx = tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
		}

		p, err := r.first(tx, "id = ?", id)
		if err != nil {
			return err
		}

		if err := fn(p); err != nil {
			return err
		}

		res := tx.Model(&paymentModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"remote_id": p.RemoteID,
				"status":    string(p.Status),
				"attempts":  p.Attempts,
				"retry_at":  utc(p.RetryAt),
			})
		if res.Error != nil {
			return res.Error
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PaymentRepository) first(db *gorm.DB, query string, arg any) (*payment.Payment, error) {
	var m paymentModel
	if err := db.Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
