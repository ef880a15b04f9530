package sqlite

import "database/sql"

func RunMigrations(db *sql.DB) error {
	stmts := []string{

		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			remote_id TEXT NOT NULL UNIQUE,
			amount TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			retry_at INTEGER
		);`,

		`CREATE INDEX IF NOT EXISTS payments_due_retries
			ON payments (status, retry_at);`,

		`CREATE TABLE IF NOT EXISTS outbox_events (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			last_error TEXT,
			created_at INTEGER NOT NULL,
			lease_until INTEGER
		);`,

		`CREATE INDEX IF NOT EXISTS outbox_events_deliverable
			ON outbox_events (status, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
