// Package ratelimit implements the per-token fixed-window limiter. Scope
// content selects a tier; each (token hash, window) pair gets one counter.
//
// Windows are clock-aligned and non-sliding: a burst straddling a window
// boundary can reach up to twice the nominal rate. That is the standard
// fixed-window tradeoff and is accepted here.
package ratelimit

import (
	"sync"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Tier is a rate-limit bucket derived from a token's scope set.
type Tier string

const (
	TierAdmin    Tier = "admin"
	TierService  Tier = "service"
	TierElevated Tier = "elevated"
	TierStandard Tier = "standard"
)

// elevatedScopeThreshold is the scope-set size above which a token is
// considered elevated even without wildcards.
const elevatedScopeThreshold = 5

// Limits holds the per-window request budget for each tier.
type Limits struct {
	Window   time.Duration
	Admin    int
	Service  int
	Elevated int
	Standard int
}

// DefaultLimits returns the production defaults: one-hour windows with
// budgets descending by privilege.
func DefaultLimits() Limits {
	return Limits{
		Window:   time.Hour,
		Admin:    10000,
		Service:  5000,
		Elevated: 1000,
		Standard: 100,
	}
}

func (l Limits) forTier(t Tier) int {
	switch t {
	case TierAdmin:
		return l.Admin
	case TierService:
		return l.Service
	case TierElevated:
		return l.Elevated
	default:
		return l.Standard
	}
}

// TierFor resolves the tier for a scope set. Rule precedence, most
// privileged match first: admin wildcard, any other resource wildcard,
// large scope set, standard.
func TierFor(scopes []model.Scope) Tier {
	wildcard := false
	for _, s := range scopes {
		if s.IsAdminWildcard() {
			return TierAdmin
		}
		if s.IsWildcard() {
			wildcard = true
		}
	}
	if wildcard {
		return TierService
	}
	if len(scopes) > elevatedScopeThreshold {
		return TierElevated
	}
	return TierStandard
}

// Result reports the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Tier      Tier
	Limit     int
	Remaining int
	// Reset is the start of the next window, when the budget refills.
	Reset time.Time
}

type counterKey struct {
	hash   string
	window int64 // unix seconds of the window start
}

// Limiter counts requests per (token hash, window). Counters live in
// process memory under a mutex: the cache store's ristretto backend has no
// atomic read-modify-write, so the check-then-increment is done here where
// it can be made race-free. Counters for past windows are pruned lazily.
type Limiter struct {
	limits Limits

	mu       sync.Mutex
	counters map[counterKey]int
	pruned   int64 // window start of the last prune pass
}

// NewLimiter creates a limiter with the given budgets.
func NewLimiter(limits Limits) *Limiter {
	if limits.Window <= 0 {
		limits = DefaultLimits()
	}
	return &Limiter{
		limits:   limits,
		counters: make(map[counterKey]int),
	}
}

// Allow atomically checks the current window's count for the token and, if
// below the tier budget, increments it. At or above the budget the counter
// is left untouched so it cannot grow without bound.
func (l *Limiter) Allow(tokenHash string, tier Tier, now time.Time) Result {
	windowStart := now.Truncate(l.limits.Window)
	limit := l.limits.forTier(tier)
	key := counterKey{hash: tokenHash, window: windowStart.Unix()}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(windowStart.Unix())

	count := l.counters[key]
	res := Result{
		Tier:  tier,
		Limit: limit,
		Reset: windowStart.Add(l.limits.Window),
	}
	if count >= limit {
		res.Allowed = false
		res.Remaining = 0
		return res
	}

	l.counters[key] = count + 1
	res.Allowed = true
	res.Remaining = limit - count - 1
	return res
}

// pruneLocked drops counters from windows that have already closed. Runs at
// most once per window change.
func (l *Limiter) pruneLocked(windowStart int64) {
	if l.pruned == windowStart {
		return
	}
	for k := range l.counters {
		if k.window < windowStart {
			delete(l.counters, k)
		}
	}
	l.pruned = windowStart
}
