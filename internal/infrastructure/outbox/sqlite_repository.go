package outbox

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"
)

var ErrEventNotFound = errors.New("outbox event not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db}
}

func (r *SQLiteRepository) Save(ctx context.Context, evt OutboxEvent) error {
	status := evt.Status
	if status == "" {
		status = StatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (id, payload, status, created_at)
		VALUES (?, ?, ?, ?)
	`,
		evt.ID,
		evt.Payload,
		string(status),
		evt.CreatedAt.UTC().UnixMilli(),
	)
	return err
}

// Claim runs as a single UPDATE, so concurrent dispatchers on one database
// never receive the same event.
func (r *SQLiteRepository) Claim(ctx context.Context, limit int, now, leaseUntil time.Time) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_events
		SET status = ?, lease_until = ?
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = ? OR (status = ? AND lease_until < ?)
			ORDER BY created_at, rowid
			LIMIT ?
		)
		RETURNING rowid, id, payload, status, COALESCE(last_error, ''), created_at
	`,
		string(StatusSending),
		leaseUntil.UTC().UnixMilli(),
		string(StatusPending),
		string(StatusSending),
		now.UTC().UnixMilli(),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type claimed struct {
		rowid int64
		evt   OutboxEvent
	}
	var batch []claimed

	for rows.Next() {
		var (
			c         claimed
			status    string
			createdAt int64
		)

		if err := rows.Scan(
			&c.rowid,
			&c.evt.ID,
			&c.evt.Payload,
			&status,
			&c.evt.LastError,
			&createdAt,
		); err != nil {
			return nil, err
		}

		c.evt.Status = Status(status)
		c.evt.CreatedAt = time.UnixMilli(createdAt).UTC()
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not follow the subquery order
	sort.Slice(batch, func(i, j int) bool {
		if !batch[i].evt.CreatedAt.Equal(batch[j].evt.CreatedAt) {
			return batch[i].evt.CreatedAt.Before(batch[j].evt.CreatedAt)
		}
		return batch[i].rowid < batch[j].rowid
	})

	events := make([]OutboxEvent, 0, len(batch))
	for _, c := range batch {
		events = append(events, c.evt)
	}
	return events, nil
}

func (r *SQLiteRepository) Release(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = ?, lease_until = NULL
		WHERE id = ? AND status = ?
	`, string(StatusPending), id, string(StatusSending))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, StatusSent, nil)
}

func (r *SQLiteRepository) MarkDropped(ctx context.Context, id, reason string) error {
	return r.mark(ctx, id, StatusDropped, &reason)
}

func (r *SQLiteRepository) mark(ctx context.Context, id string, status Status, reason *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = ?, last_error = ?, lease_until = NULL
		WHERE id = ?
	`, string(status), reason, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}
