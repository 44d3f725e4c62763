package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Config sizes the in-process cache.
type Config struct {
	// MaxCost is the maximum cache cost in bytes, roughly.
	MaxCost int64
	// NumCounters is the number of keys ristretto tracks for frequency.
	NumCounters int64
	// RecentEvents is the audit mirror ring size.
	RecentEvents int
}

// DefaultConfig returns a production-ready default configuration.
func DefaultConfig() Config {
	return Config{
		MaxCost:      64 << 20, // 64 MB
		NumCounters:  1e6,
		RecentEvents: 100,
	}
}

// Memory is a ristretto-backed Store. Cache entries and revocation markers
// live in separate typed caches; recent audit events are kept in a small
// ring buffer since ristretto has no enumeration.
type Memory struct {
	entries *ristretto.Cache[string, *model.CacheEntry]
	markers *ristretto.Cache[string, *model.RevocationMarker]

	mu     sync.Mutex
	recent []model.AuditEvent
	next   int
	filled bool
}

// NewMemory creates an in-process cache store.
func NewMemory(cfg Config) (*Memory, error) {
	if cfg.MaxCost == 0 {
		cfg = DefaultConfig()
	}

	entries, err := ristretto.NewCache(&ristretto.Config[string, *model.CacheEntry]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init entry cache: %w", err)
	}

	markers, err := ristretto.NewCache(&ristretto.Config[string, *model.RevocationMarker]{
		NumCounters: cfg.NumCounters,
		// Markers are tiny and must not be evicted under entry pressure,
		// so they get their own cache with a modest cost ceiling.
		MaxCost:     8 << 20,
		BufferItems: 64,
	})
	if err != nil {
		entries.Close()
		return nil, fmt.Errorf("init marker cache: %w", err)
	}

	return &Memory{
		entries: entries,
		markers: markers,
		recent:  make([]model.AuditEvent, cfg.RecentEvents),
	}, nil
}

func (m *Memory) GetEntry(hash string) (*model.CacheEntry, bool) {
	return m.entries.Get(hash)
}

func (m *Memory) PutEntry(hash string, entry *model.CacheEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.entries.SetWithTTL(hash, entry, 1, ttl)
	m.entries.Wait()
}

func (m *Memory) DeleteEntry(hash string) {
	m.entries.Del(hash)
}

func (m *Memory) GetRevocation(hash string) (*model.RevocationMarker, bool) {
	return m.markers.Get(hash)
}

func (m *Memory) PutRevocation(hash string, marker *model.RevocationMarker, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.markers.SetWithTTL(hash, marker, 1, ttl)
	// Ristretto writes are buffered; a revocation marker must be readable
	// the moment Revoke returns.
	m.markers.Wait()
}

func (m *Memory) PutAuditEvent(ev model.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recent) == 0 {
		return
	}
	m.recent[m.next] = ev
	m.next = (m.next + 1) % len(m.recent)
	if m.next == 0 {
		m.filled = true
	}
}

func (m *Memory) RecentAuditEvents() []model.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	if m.filled {
		size = len(m.recent)
	}
	out := make([]model.AuditEvent, 0, size)
	// Walk backwards from the most recent write.
	for i := 0; i < size; i++ {
		idx := (m.next - 1 - i + len(m.recent)) % len(m.recent)
		out = append(out, m.recent[idx])
	}
	return out
}

func (m *Memory) Close() {
	m.entries.Close()
	m.markers.Close()
}
