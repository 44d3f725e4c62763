// Package store is the durable, source-of-truth storage for token records
// and audit events, backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Store persists token records and audit events.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a durable store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "chittyauth.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open token database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate token database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// tokenRow is a flat struct that maps 1:1 to the token_records columns.
// model.TokenRecord carries Scope as a string slice, which is stored in the
// scope_json column.
type tokenRow struct {
	ID               int64      `db:"id"`
	TokenID          string     `db:"token_id"`
	TokenHash        string     `db:"token_hash"`
	SubjectID        string     `db:"subject_id"`
	ServiceName      string     `db:"service_name"`
	ScopeJSON        string     `db:"scope_json"`
	CreatedAt        time.Time  `db:"created_at"`
	ExpiresAt        time.Time  `db:"expires_at"`
	LastUsedAt       *time.Time `db:"last_used_at"`
	RequestCount     int64      `db:"request_count"`
	RevokedAt        *time.Time `db:"revoked_at"`
	RevocationReason string     `db:"revocation_reason"`
}

func tokenRowFromModel(rec *model.TokenRecord) (tokenRow, error) {
	scopeJSON, err := json.Marshal(rec.Scope)
	if err != nil {
		return tokenRow{}, fmt.Errorf("marshal scope: %w", err)
	}
	return tokenRow{
		ID:               rec.ID,
		TokenID:          rec.TokenID,
		TokenHash:        rec.TokenHash,
		SubjectID:        rec.SubjectID,
		ServiceName:      rec.ServiceName,
		ScopeJSON:        string(scopeJSON),
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		LastUsedAt:       rec.LastUsedAt,
		RequestCount:     rec.RequestCount,
		RevokedAt:        rec.RevokedAt,
		RevocationReason: rec.RevocationReason,
	}, nil
}

func (r tokenRow) toModel() (*model.TokenRecord, error) {
	var scope []string
	if r.ScopeJSON != "" && r.ScopeJSON != "[]" {
		if err := json.Unmarshal([]byte(r.ScopeJSON), &scope); err != nil {
			return nil, fmt.Errorf("unmarshal scope: %w", err)
		}
	}
	if scope == nil {
		scope = []string{}
	}
	return &model.TokenRecord{
		ID:               r.ID,
		TokenID:          r.TokenID,
		TokenHash:        r.TokenHash,
		SubjectID:        r.SubjectID,
		ServiceName:      r.ServiceName,
		Scope:            scope,
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
		LastUsedAt:       r.LastUsedAt,
		RequestCount:     r.RequestCount,
		RevokedAt:        r.RevokedAt,
		RevocationReason: r.RevocationReason,
	}, nil
}

// CreateToken inserts a new token record. The ID field on rec is populated
// after a successful insert.
func (s *Store) CreateToken(ctx context.Context, rec *model.TokenRecord) error {
	row, err := tokenRowFromModel(rec)
	if err != nil {
		return err
	}

	const q = `INSERT INTO token_records
		(token_id, token_hash, subject_id, service_name, scope_json,
		 created_at, expires_at, last_used_at, request_count, revoked_at, revocation_reason)
		VALUES
		(:token_id, :token_hash, :subject_id, :service_name, :scope_json,
		 :created_at, :expires_at, :last_used_at, :request_count, :revoked_at, :revocation_reason)`

	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("insert token record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get token record id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetTokenByHash looks up a token record by its SHA-256 hash. Revoked rows
// are returned too: callers derive the revoked verdict from RevokedAt so
// that revocation is reported even after the cache marker's grace window.
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*model.TokenRecord, error) {
	var row tokenRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM token_records WHERE token_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token by hash: %w", err)
	}
	return row.toModel()
}

// GetTokenByID looks up a token record by its opaque token id.
func (s *Store) GetTokenByID(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	var row tokenRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM token_records WHERE token_id = ?", tokenID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get token by id: %w", err)
	}
	return row.toModel()
}

// GetHashByID returns the stored token hash for a token id.
func (s *Store) GetHashByID(ctx context.Context, tokenID string) (string, error) {
	var hash string
	if err := s.db.GetContext(ctx, &hash,
		"SELECT token_hash FROM token_records WHERE token_id = ?", tokenID); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get hash by id: %w", err)
	}
	return hash, nil
}

// TouchToken increments the usage counter and sets last_used_at for the
// record with the given hash. Concurrent touches on the same token may lose
// an increment; the counter is a usage signal, not a security boundary.
func (s *Store) TouchToken(ctx context.Context, hash string, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE token_records SET request_count = request_count + 1, last_used_at = ? WHERE token_hash = ?",
		now.UTC(), hash)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch token rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeToken marks the record revoked. Revocation is set-once: if the row
// is already revoked the update is a no-op and the original revocation
// fields are preserved. The record as stored after the call is returned.
func (s *Store) RevokeToken(ctx context.Context, tokenID, reason string, now time.Time) (*model.TokenRecord, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE token_records SET revoked_at = ?, revocation_reason = ? WHERE token_id = ? AND revoked_at IS NULL",
		now.UTC(), reason, tokenID)
	if err != nil {
		return nil, fmt.Errorf("revoke token: %w", err)
	}
	return s.GetTokenByID(ctx, tokenID)
}

// InsertAuditEvent appends one audit event. Events are immutable after
// insert.
func (s *Store) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	const q = `INSERT INTO audit_events
		(event_id, event_type, token_id, subject_id, service_name, success, error_message, timestamp)
		VALUES
		(:event_id, :event_type, :token_id, :subject_id, :service_name, :success, :error_message, :timestamp)`

	if _, err := s.db.NamedExecContext(ctx, q, ev); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountAuditEvents returns the number of stored events of the given type.
func (s *Store) CountAuditEvents(ctx context.Context, eventType string) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM audit_events WHERE event_type = ?", eventType); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}
