package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS token_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_id TEXT UNIQUE NOT NULL,
			token_hash TEXT UNIQUE NOT NULL,
			subject_id TEXT NOT NULL,
			service_name TEXT NOT NULL DEFAULT '',
			scope_json TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			last_used_at DATETIME,
			request_count INTEGER NOT NULL DEFAULT 0,
			revoked_at DATETIME,
			revocation_reason TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT UNIQUE NOT NULL,
			event_type TEXT NOT NULL,
			token_id TEXT NOT NULL DEFAULT '',
			subject_id TEXT NOT NULL DEFAULT '',
			service_name TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 1,
			error_message TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_token_records_hash ON token_records(token_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_token_records_token_id ON token_records(token_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_type_ts ON audit_events(event_type, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
