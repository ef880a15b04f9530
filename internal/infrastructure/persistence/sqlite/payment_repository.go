package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rcarvalho-pb/payment_mediator-go/internal/domain/payment"
)

const paymentColumns = `id, remote_id, amount, description, status, attempts, created_at, retry_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.RemoteID,
		p.Amount.String(),
		p.Description,
		string(p.Status),
		p.Attempts,
		p.CreatedAt.UTC().UnixMilli(),
		millis(p.RetryAt),
	)
	return err
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*payment.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

func (r *PaymentRepository) FindByRemoteID(ctx context.Context, remoteID string) (*payment.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE remote_id = ?`, remoteID)
	return scanPayment(row)
}

func (r *PaymentRepository) FindDueRetries(ctx context.Context, now time.Time) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = ? AND retry_at IS NOT NULL AND retry_at <= ?
		 ORDER BY retry_at`,
		string(payment.StatusCanceled),
		now.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, p)
	}
	return due, rows.Err()
}

// Update runs fn inside a write transaction. The connection opened by Open
// begins it immediately, so concurrent Updates of any row queue up on the
// database lock instead of racing.
func (r *PaymentRepository) Update(ctx context.Context, id string, fn payment.UpdateFunc) (*payment.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET remote_id = ?, status = ?, attempts = ?, retry_at = ?
		 WHERE id = ?`,
		p.RemoteID,
		string(p.Status),
		p.Attempts,
		millis(p.RetryAt),
		id,
	)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, payment.ErrPaymentNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p         payment.Payment
		status    string
		createdAt int64
		retryAt   sql.NullInt64
	)

	if err := row.Scan(
		&p.ID,
		&p.RemoteID,
		&p.Amount,
		&p.Description,
		&status,
		&p.Attempts,
		&createdAt,
		&retryAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}

	p.Status = payment.Status(status)
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	if retryAt.Valid {
		t := time.UnixMilli(retryAt.Int64).UTC()
		p.RetryAt = &t
	}
	return &p, nil
}

func millis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}
