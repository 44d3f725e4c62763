package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Stats returns the operator statistics surface, derived entirely from
// durable aggregates: token counts by state plus validations in the
// trailing 24 hours.
func (s *Store) Stats(ctx context.Context, now time.Time) (*model.TokenStats, error) {
	nowUTC := now.UTC()

	var stats model.TokenStats
	const q = `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN revoked_at IS NULL AND expires_at > ? THEN 1 ELSE 0 END), 0) AS active,
		COALESCE(SUM(CASE WHEN revoked_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS revoked,
		COALESCE(SUM(CASE WHEN revoked_at IS NULL AND expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired
		FROM token_records`

	row := s.db.QueryRowxContext(ctx, q, nowUTC, nowUTC)
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Revoked, &stats.Expired); err != nil {
		return nil, fmt.Errorf("token stats: %w", err)
	}

	since := nowUTC.Add(-24 * time.Hour)
	if err := s.db.GetContext(ctx, &stats.Requests24,
		"SELECT COUNT(*) FROM audit_events WHERE event_type = ? AND timestamp > ?",
		model.EventTokenValidated, since); err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}

	return &stats, nil
}
