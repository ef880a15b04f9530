package gormstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/infrastructure/outbox"
)

type outboxModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Payload   []byte `gorm:"not null"`
	Status    string `gorm:"size:16;not null;index:idx_outbox_pending,priority:1"`
	LastError  *string
	CreatedAt  time.Time `gorm:"index:idx_outbox_pending,priority:2"`
	LeaseUntil *time.Time
	ClaimToken *string `gorm:"size:36;index"`
}

func (outboxModel) TableName() string { return "outbox_events" }

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Save(ctx context.Context, evt outbox.OutboxEvent) error {
	status := evt.Status
	if status == "" {
		status = outbox.StatusPending
	}

	return r.db.WithContext(ctx).Create(&outboxModel{
		ID:        evt.ID,
		Payload:   evt.Payload,
		Status:    string(status),
		CreatedAt: evt.CreatedAt.UTC(),
	}).Error
}

// Claim tags the selected rows with a fresh token and reads back only the
// rows carrying it, so a row is handed to one caller even where the dialect
// has no SKIP LOCKED.
func (r *OutboxRepository) Claim(ctx context.Context, limit int, now, leaseUntil time.Time) ([]outbox.OutboxEvent, error) {
	token := uuid.NewString()
	lease := leaseUntil.UTC()
	deliverable := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ? OR (status = ? AND lease_until < ?)",
			string(outbox.StatusPending), string(outbox.StatusSending), now.UTC())
	}

	var models []outboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: "SKIP LOCKED"})
		}

		var ids []string
		err := deliverable(q.Model(&outboxModel{})).
			Order("created_at").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}

		err = deliverable(tx.Model(&outboxModel{}).Where("id IN ?", ids)).
			Updates(map[string]any{
				"status":      string(outbox.StatusSending),
				"lease_until": lease,
				"claim_token": token,
			}).Error
		if err != nil {
			return err
		}

		return tx.Where("claim_token = ? AND status = ?", token, string(outbox.StatusSending)).
			Order("created_at").
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}

	events := make([]outbox.OutboxEvent, 0, len(models))
	for _, m := range models {
		evt := outbox.OutboxEvent{
			ID:        m.ID,
			Payload:   m.Payload,
			Status:    outbox.Status(m.Status),
			CreatedAt: m.CreatedAt.UTC(),
		}
		if m.LastError != nil {
			evt.LastError = *m.LastError
		}
		events = append(events, evt)
	}
	return events, nil
}

func (r *OutboxRepository) Release(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ? AND status = ?", id, string(outbox.StatusSending)).
		Updates(map[string]any{
			"status":      string(outbox.StatusPending),
			"lease_until": nil,
			"claim_token": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return outbox.ErrEventNotFound
	}
	return nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, map[string]any{
		"status":      string(outbox.StatusSent),
		"lease_until": nil,
	})
}

func (r *OutboxRepository) MarkDropped(ctx context.Context, id, reason string) error {
	return r.mark(ctx, id, map[string]any{
		"status":      string(outbox.StatusDropped),
		"last_error":  reason,
		"lease_until": nil,
	})
}

func (r *OutboxRepository) mark(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return outbox.ErrEventNotFound
	}
	return nil
}
