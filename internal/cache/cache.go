// Package cache defines the fast TTL key/value store the lifecycle engine
// uses as a hint layer: active-token cache entries, revocation markers, and
// a mirror of recent audit events.
package cache

import (
	"time"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Store is the cache-store contract. All methods are best-effort: callers
// must treat entry absence as "unknown" and fall back to the durable store,
// while a present revocation marker is authoritative proof of invalidity.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// GetEntry returns the cached projection for a token hash, if present.
	GetEntry(hash string) (*model.CacheEntry, bool)
	// PutEntry caches a projection under the token hash for ttl.
	PutEntry(hash string, entry *model.CacheEntry, ttl time.Duration)
	// DeleteEntry removes the cached projection for a token hash.
	DeleteEntry(hash string)

	// GetRevocation returns the revocation marker for a token hash, if any.
	GetRevocation(hash string) (*model.RevocationMarker, bool)
	// PutRevocation records a revocation marker for the grace window. The
	// marker must be visible to subsequent GetRevocation calls before
	// PutRevocation returns.
	PutRevocation(hash string, marker *model.RevocationMarker, ttl time.Duration)

	// PutAuditEvent mirrors an audit event for the operator surface.
	PutAuditEvent(ev model.AuditEvent)
	// RecentAuditEvents returns the mirrored events, newest first.
	RecentAuditEvents() []model.AuditEvent

	// Close releases any resources held by the store.
	Close()
}
