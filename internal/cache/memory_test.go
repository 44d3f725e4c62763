package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

func newTestCache(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestEntryRoundTrip(t *testing.T) {
	m := newTestCache(t)

	entry := &model.CacheEntry{
		TokenID:   "tok_1",
		SubjectID: "subject-1",
		Scope:     []string{"res:read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	m.PutEntry("hash-1", entry, time.Minute)

	got, ok := m.GetEntry("hash-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.TokenID != "tok_1" || got.SubjectID != "subject-1" {
		t.Errorf("entry mismatch: %+v", got)
	}

	m.DeleteEntry("hash-1")
	if _, ok := m.GetEntry("hash-1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestEntryTTLExpires(t *testing.T) {
	m := newTestCache(t)

	m.PutEntry("hash-ttl", &model.CacheEntry{TokenID: "tok_ttl"}, 50*time.Millisecond)
	if _, ok := m.GetEntry("hash-ttl"); !ok {
		t.Fatal("expected hit before TTL")
	}

	time.Sleep(120 * time.Millisecond)
	if _, ok := m.GetEntry("hash-ttl"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestRevocationMarkerVisibleImmediately(t *testing.T) {
	m := newTestCache(t)

	marker := &model.RevocationMarker{TokenID: "tok_rv", RevokedAt: time.Now(), Reason: "test"}
	m.PutRevocation("hash-rv", marker, time.Hour)

	got, ok := m.GetRevocation("hash-rv")
	if !ok {
		t.Fatal("marker not visible after PutRevocation returned")
	}
	if got.Reason != "test" {
		t.Errorf("reason: got %q, want %q", got.Reason, "test")
	}
}

func TestZeroTTLIgnored(t *testing.T) {
	m := newTestCache(t)

	m.PutEntry("hash-z", &model.CacheEntry{TokenID: "tok_z"}, 0)
	if _, ok := m.GetEntry("hash-z"); ok {
		t.Error("zero-TTL entry should not be stored")
	}
	m.PutRevocation("hash-z", &model.RevocationMarker{}, -time.Second)
	if _, ok := m.GetRevocation("hash-z"); ok {
		t.Error("negative-TTL marker should not be stored")
	}
}

func TestRecentAuditEventsRing(t *testing.T) {
	m, err := NewMemory(Config{MaxCost: 1 << 20, NumCounters: 1e4, RecentEvents: 3})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.PutAuditEvent(model.AuditEvent{EventID: fmt.Sprintf("ev-%d", i)})
	}

	got := m.RecentAuditEvents()
	if len(got) != 3 {
		t.Fatalf("recent events: got %d, want 3", len(got))
	}
	// Newest first, oldest two evicted.
	want := []string{"ev-4", "ev-3", "ev-2"}
	for i, w := range want {
		if got[i].EventID != w {
			t.Errorf("recent[%d]: got %s, want %s", i, got[i].EventID, w)
		}
	}
}
