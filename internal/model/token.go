package model

import "time"

// TokenRecord is the durable row for one issued bearer token. The raw token
// string is never stored; only a SHA-256 hash is persisted and all lookups
// key on it.
type TokenRecord struct {
	ID               int64      `json:"-" db:"id"`
	TokenID          string     `json:"token_id" db:"token_id"`
	TokenHash        string     `json:"-" db:"token_hash"` // SHA-256 hash, never expose
	SubjectID        string     `json:"subject_id" db:"subject_id"`
	ServiceName      string     `json:"service_name" db:"service_name"`
	Scope            []string   `json:"scope" db:"-"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RequestCount     int64      `json:"request_count" db:"request_count"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevocationReason string     `json:"revocation_reason,omitempty" db:"revocation_reason"`
}

// Active reports whether the record is usable at the given instant:
// not revoked and not past its expiry.
func (r *TokenRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// CacheEntry is the denormalized projection of an active TokenRecord kept in
// the cache store under the token hash. It is a disposable hint: absence
// proves nothing, and a revocation marker always takes precedence over it.
type CacheEntry struct {
	TokenID      string    `json:"token_id"`
	SubjectID    string    `json:"subject_id"`
	ServiceName  string    `json:"service_name"`
	Scope        []string  `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	RequestCount int64     `json:"request_count"`
}

// RevocationMarker proves a token was invalidated. It is written at revoke
// time with its own grace-window TTL so caching layers cannot resurrect a
// revoked token while their copies age out.
type RevocationMarker struct {
	TokenID   string    `json:"token_id"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    string    `json:"reason"`
}

// TokenStats is the operator-facing statistics surface, derived entirely
// from durable-store aggregates.
type TokenStats struct {
	Total      int64 `json:"total"`
	Active     int64 `json:"active"`
	Revoked    int64 `json:"revoked"`
	Expired    int64 `json:"expired"`
	Requests24 int64 `json:"requests_24h"`
}
