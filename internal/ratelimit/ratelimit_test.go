package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

func scopes(t *testing.T, raw ...string) []model.Scope {
	t.Helper()
	parsed, err := model.ParseScopes(raw)
	if err != nil {
		t.Fatalf("ParseScopes: %v", err)
	}
	return parsed
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		name  string
		scope []string
		want  Tier
	}{
		{"admin wildcard", []string{"res:read", "admin:*"}, TierAdmin},
		{"service wildcard", []string{"res:*"}, TierService},
		{"admin beats service", []string{"res:*", "admin:*"}, TierAdmin},
		{"large scope set", []string{"a:r", "b:r", "c:r", "d:r", "e:r", "f:r"}, TierElevated},
		{"standard", []string{"res:read"}, TierStandard},
		{"empty", nil, TierStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFor(scopes(t, tt.scope...)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAllowBoundary(t *testing.T) {
	l := NewLimiter(Limits{Window: time.Hour, Standard: 3, Elevated: 10, Service: 10, Admin: 10})
	now := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res := l.Allow("hash-a", TierStandard, now)
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if want := 3 - i - 1; res.Remaining != want {
			t.Errorf("request %d remaining: got %d, want %d", i+1, res.Remaining, want)
		}
	}

	// The (N+1)-th request in the same window is rejected with remaining 0.
	res := l.Allow("hash-a", TierStandard, now)
	if res.Allowed {
		t.Fatal("expected rejection at the limit")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining at limit: got %d, want 0", res.Remaining)
	}

	// Rejections do not grow the counter: the next window starts fresh.
	next := now.Add(time.Hour)
	if res := l.Allow("hash-a", TierStandard, next); !res.Allowed || res.Remaining != 2 {
		t.Errorf("new window: got %+v", res)
	}
}

func TestAllowPerToken(t *testing.T) {
	l := NewLimiter(Limits{Window: time.Hour, Standard: 1, Elevated: 10, Service: 10, Admin: 10})
	now := time.Now()

	if res := l.Allow("hash-a", TierStandard, now); !res.Allowed {
		t.Fatal("first token should be allowed")
	}
	if res := l.Allow("hash-b", TierStandard, now); !res.Allowed {
		t.Error("second token must have its own counter")
	}
	if res := l.Allow("hash-a", TierStandard, now); res.Allowed {
		t.Error("first token should be exhausted")
	}
}

func TestAllowReset(t *testing.T) {
	l := NewLimiter(DefaultLimits())
	now := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)

	res := l.Allow("hash-a", TierStandard, now)
	wantReset := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	if !res.Reset.Equal(wantReset) {
		t.Errorf("reset: got %v, want %v", res.Reset, wantReset)
	}
}

func TestAllowConcurrent(t *testing.T) {
	const limit = 50
	l := NewLimiter(Limits{Window: time.Hour, Standard: limit, Elevated: 10, Service: 10, Admin: 10})
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("hash-c", TierStandard, now).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("allowed: got %d, want exactly %d", allowed, limit)
	}
}
