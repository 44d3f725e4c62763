// Package engine orchestrates the token lifecycle: provisioning,
// validation, refresh, and revocation. It owns no mutable state of its own
// beyond the injected stores; every operation is self-contained and safe to
// run concurrently with any other.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/audit"
	"github.com/chittyapps/chittyauth-app/internal/cache"
	"github.com/chittyapps/chittyauth-app/internal/model"
	"github.com/chittyapps/chittyauth-app/internal/ratelimit"
	"github.com/chittyapps/chittyauth-app/internal/signer"
	"github.com/chittyapps/chittyauth-app/internal/store"
	"github.com/chittyapps/chittyauth-app/internal/token"
)

var (
	// ErrInvalidRequest marks missing or malformed caller input. Never
	// retried; the caller must fix the request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStoreUnavailable marks a durable-store infrastructure failure.
	// It is deliberately distinct from a NotFound verdict: an outage must
	// never masquerade as "token doesn't exist".
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Reason classifies a negative validation verdict. These are normal
// outcomes, not errors.
type Reason string

const (
	ReasonInvalidFormat Reason = "invalid_format"
	ReasonRevoked       Reason = "revoked"
	ReasonNotFound      Reason = "not_found"
	ReasonExpired       Reason = "expired"
	// ReasonRateLimited means the token IS valid but throttled for the
	// rest of the current window.
	ReasonRateLimited Reason = "rate_limited"
)

// DurableStore is the source-of-truth storage contract the engine needs.
// *store.Store satisfies it.
type DurableStore interface {
	CreateToken(ctx context.Context, rec *model.TokenRecord) error
	GetTokenByHash(ctx context.Context, hash string) (*model.TokenRecord, error)
	TouchToken(ctx context.Context, hash string, now time.Time) error
	RevokeToken(ctx context.Context, tokenID, reason string, now time.Time) (*model.TokenRecord, error)
	Stats(ctx context.Context, now time.Time) (*model.TokenStats, error)
}

// Config holds the explicit construction-time configuration for an Engine.
// Nothing is read from ambient environment inside methods; deterministic
// testing needs fixed keys and clocks.
type Config struct {
	SigningKey  []byte
	Environment token.Environment
	// DefaultTTL applies when a provision request carries no TTL.
	DefaultTTL time.Duration
	// RevocationGrace is the revocation-marker TTL, independent of the
	// token's own expiry.
	RevocationGrace time.Duration
	// CacheTTL bounds the staleness window of cache entries.
	CacheTTL time.Duration
	// RateLimits holds the per-tier fixed-window budgets.
	RateLimits ratelimit.Limits
}

// DefaultConfig returns production defaults for everything but the signing
// key and environment, which have no safe defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      time.Hour,
		RevocationGrace: 24 * time.Hour,
		CacheTTL:        30 * time.Second,
		RateLimits:      ratelimit.DefaultLimits(),
	}
}

// Engine is the token lifecycle engine.
type Engine struct {
	cfg     Config
	signer  *signer.Signer
	codec   *token.Codec
	store   DurableStore
	cache   cache.Store
	limiter *ratelimit.Limiter
	audit   *audit.Logger
	log     *slog.Logger

	// now is the clock; swapped in tests.
	now func() time.Time
}

// New creates an Engine. The signing key must be non-empty; whether a
// development fallback key is acceptable is the caller's policy, enforced
// before construction.
func New(cfg Config, durable DurableStore, cacheStore cache.Store, auditLog *audit.Logger, log *slog.Logger) (*Engine, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.RevocationGrace <= 0 {
		cfg.RevocationGrace = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	sgn, err := signer.New(cfg.SigningKey)
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(sgn, cfg.Environment)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		signer:  sgn,
		codec:   codec,
		store:   durable,
		cache:   cacheStore,
		limiter: ratelimit.NewLimiter(cfg.RateLimits),
		audit:   auditLog,
		log:     log,
		now:     time.Now,
	}, nil
}

// RateLimitPolicy describes the budget attached to a provisioned token.
type RateLimitPolicy struct {
	Tier   ratelimit.Tier `json:"tier"`
	Limit  int            `json:"limit"`
	Window time.Duration  `json:"window"`
}

// ProvisionRequest is the caller input for minting a new token. The caller
// is responsible for having checked the scope set against the subject's
// permission set; the engine attaches it unmodified.
type ProvisionRequest struct {
	SubjectID   string
	Scope       []string
	ServiceName string
	// TTL of zero means the engine default.
	TTL time.Duration
}

// ProvisionResult carries the minted credential. Token holds the plaintext
// and is returned exactly once; it is never stored and cannot be recovered.
type ProvisionResult struct {
	Token       string          `json:"token"`
	TokenID     string          `json:"token_id"`
	SubjectID   string          `json:"subject_id"`
	ServiceName string          `json:"service_name"`
	Scope       []string        `json:"scope"`
	ExpiresAt   time.Time       `json:"expires_at"`
	RateLimit   RateLimitPolicy `json:"rate_limit"`
}

// Verdict is the outcome of validating a presented token.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`

	TokenID            string    `json:"token_id,omitempty"`
	SubjectID          string    `json:"subject_id,omitempty"`
	ServiceName        string    `json:"service_name,omitempty"`
	Scope              []string  `json:"scope,omitempty"`
	ExpiresAt          time.Time `json:"expires_at,omitzero"`
	RateLimitRemaining int       `json:"rate_limit_remaining,omitempty"`
	// RetryAfterSeconds is set only on a rate-limited verdict: seconds
	// until the current window closes.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// RevocationResult reports a (possibly idempotent) revocation. RevokedAt
// and Reason reflect the first revocation when the token was already
// revoked.
type RevocationResult struct {
	TokenID   string    `json:"token_id"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    string    `json:"reason"`
}

// Provision mints a new bearer token for a subject. The durable record is
// written before the cache mirror so that a crash between the two leaves a
// recoverable state: the cache is reconstructible from durable rows, never
// the other way around.
func (e *Engine) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	if req.SubjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidRequest)
	}
	if req.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidRequest)
	}
	if len(req.Scope) == 0 {
		return nil, fmt.Errorf("%w: scope must not be empty", ErrInvalidRequest)
	}
	scopes, err := model.ParseScopes(req.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}

	now := e.now().UTC()
	tokenID, err := newTokenID()
	if err != nil {
		return nil, fmt.Errorf("generate token id: %w", err)
	}

	raw := e.codec.Encode(tokenID, req.SubjectID, req.ServiceName, now)
	hash := signer.Hash(raw)
	expiresAt := now.Add(ttl)

	rec := &model.TokenRecord{
		TokenID:     tokenID,
		TokenHash:   hash,
		SubjectID:   req.SubjectID,
		ServiceName: req.ServiceName,
		Scope:       req.Scope,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := e.store.CreateToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.cache.PutEntry(hash, entryFromRecord(rec), e.entryTTL(expiresAt, now))

	e.audit.Emit(model.AuditEvent{
		EventType:   model.EventTokenProvision,
		TokenID:     tokenID,
		SubjectID:   req.SubjectID,
		ServiceName: req.ServiceName,
		Success:     true,
		Timestamp:   now,
	})

	tier := ratelimit.TierFor(scopes)
	return &ProvisionResult{
		Token:       raw,
		TokenID:     tokenID,
		SubjectID:   req.SubjectID,
		ServiceName: req.ServiceName,
		Scope:       req.Scope,
		ExpiresAt:   expiresAt,
		RateLimit:   e.policyFor(tier),
	}, nil
}

// Validate checks a presented token and returns a verdict. Each gate fails
// fast; negative outcomes land in Verdict.Reason while infrastructure
// failures surface as ErrStoreUnavailable.
func (e *Engine) Validate(ctx context.Context, rawToken string) (*Verdict, error) {
	now := e.now().UTC()

	// Gate 1: structural format check.
	if !token.WellFormed(rawToken) {
		return e.deny(&Verdict{Reason: ReasonInvalidFormat}, "unrecognized token prefix", now), nil
	}

	hash := signer.Hash(rawToken)

	// Gate 2: the revocation marker beats any cache entry.
	if marker, ok := e.cache.GetRevocation(hash); ok {
		v := &Verdict{Reason: ReasonRevoked, TokenID: marker.TokenID}
		return e.deny(v, "token revoked: "+marker.Reason, now), nil
	}

	// Gate 3/4: cache entry, then durable fallback with repopulation.
	entry, hit := e.cache.GetEntry(hash)
	if !hit {
		rec, err := e.store.GetTokenByHash(ctx, hash)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return e.deny(&Verdict{Reason: ReasonNotFound}, "token hash unknown", now), nil
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if rec.RevokedAt != nil {
			v := &Verdict{Reason: ReasonRevoked, TokenID: rec.TokenID, SubjectID: rec.SubjectID}
			return e.deny(v, "token revoked: "+rec.RevocationReason, now), nil
		}
		entry = entryFromRecord(rec)
		e.cache.PutEntry(hash, entry, e.entryTTL(rec.ExpiresAt, now))
	}

	// Gate 5: expiry is computed, never stored as a state transition.
	if !entry.ExpiresAt.After(now) {
		v := verdictFromEntry(entry)
		v.Reason = ReasonExpired
		return e.deny(v, "token expired", now), nil
	}

	// Gate 6: usage update, authoritative on the durable store. A
	// rate-limited request further down still counts as usage.
	if err := e.store.TouchToken(ctx, hash, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.deny(&Verdict{Reason: ReasonNotFound}, "token row vanished", now), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// The entry is shared with concurrent validations of the same token
	// and with ristretto itself; never mutate it in place.
	touched := *entry
	touched.RequestCount++
	entry = &touched
	e.cache.PutEntry(hash, entry, e.entryTTL(entry.ExpiresAt, now))

	// Gate 7: per-token fixed-window budget.
	tier := e.tierForEntry(entry)
	res := e.limiter.Allow(hash, tier, now)
	if !res.Allowed {
		v := verdictFromEntry(entry)
		v.Reason = ReasonRateLimited
		v.RetryAfterSeconds = int(res.Reset.Sub(now)/time.Second) + 1
		return e.deny(v, fmt.Sprintf("rate limit exceeded for tier %s", tier), now), nil
	}

	e.audit.Emit(model.AuditEvent{
		EventType:   model.EventTokenValidated,
		TokenID:     entry.TokenID,
		SubjectID:   entry.SubjectID,
		ServiceName: entry.ServiceName,
		Success:     true,
		Timestamp:   now,
	})

	v := verdictFromEntry(entry)
	v.Valid = true
	v.RateLimitRemaining = res.Remaining
	return v, nil
}

// Refresh atomically replaces a token: the presented token must validate,
// is then revoked with reason "refreshed", and a new token with the same
// subject, scope, and service is provisioned. On a failed validation the
// denial verdict is returned and nothing is mutated.
func (e *Engine) Refresh(ctx context.Context, rawToken string, newTTL time.Duration) (*ProvisionResult, *Verdict, error) {
	v, err := e.Validate(ctx, rawToken)
	if err != nil {
		return nil, nil, err
	}
	if !v.Valid {
		return nil, v, nil
	}

	if _, err := e.Revoke(ctx, v.TokenID, "refreshed"); err != nil {
		return nil, nil, err
	}

	result, err := e.Provision(ctx, ProvisionRequest{
		SubjectID:   v.SubjectID,
		Scope:       v.Scope,
		ServiceName: v.ServiceName,
		TTL:         newTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	e.audit.Emit(model.AuditEvent{
		EventType:   model.EventTokenRefreshed,
		TokenID:     result.TokenID,
		SubjectID:   result.SubjectID,
		ServiceName: result.ServiceName,
		Success:     true,
		Timestamp:   e.now().UTC(),
	})
	return result, nil, nil
}

// Revoke invalidates a token by id. It is idempotent: revoking an unknown
// or already-revoked id still succeeds, and only the first revocation's
// timestamp and reason are ever reported. The durable write lands before
// the marker so the marker never outruns its source of truth.
func (e *Engine) Revoke(ctx context.Context, tokenID, reason string) (*RevocationResult, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("%w: token id is required", ErrInvalidRequest)
	}

	now := e.now().UTC()
	rec, err := e.store.RevokeToken(ctx, tokenID, reason, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown id: revocation is a set-once-ever operation, not a
			// CAS, so this still reports success.
			e.audit.Emit(model.AuditEvent{
				EventType:    model.EventTokenRevoked,
				TokenID:      tokenID,
				Success:      true,
				ErrorMessage: "token id unknown",
				Timestamp:    now,
			})
			return &RevocationResult{TokenID: tokenID, RevokedAt: now, Reason: reason}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.cache.PutRevocation(rec.TokenHash, &model.RevocationMarker{
		TokenID:   rec.TokenID,
		RevokedAt: *rec.RevokedAt,
		Reason:    rec.RevocationReason,
	}, e.cfg.RevocationGrace)
	e.cache.DeleteEntry(rec.TokenHash)

	e.audit.Emit(model.AuditEvent{
		EventType:   model.EventTokenRevoked,
		TokenID:     rec.TokenID,
		SubjectID:   rec.SubjectID,
		ServiceName: rec.ServiceName,
		Success:     true,
		Timestamp:   now,
	})

	return &RevocationResult{
		TokenID:   rec.TokenID,
		RevokedAt: *rec.RevokedAt,
		Reason:    rec.RevocationReason,
	}, nil
}

// Stats returns the operator statistics surface.
func (e *Engine) Stats(ctx context.Context) (*model.TokenStats, error) {
	stats, err := e.store.Stats(ctx, e.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return stats, nil
}

// RecentAuditEvents exposes the cache mirror of recent events.
func (e *Engine) RecentAuditEvents() []model.AuditEvent {
	return e.cache.RecentAuditEvents()
}

// Prefix returns the token prefix this engine mints with.
func (e *Engine) Prefix() string {
	return e.codec.Prefix()
}

// deny finalizes a negative verdict: the failure is audited and the verdict
// returned with Valid false.
func (e *Engine) deny(v *Verdict, msg string, now time.Time) *Verdict {
	v.Valid = false
	e.audit.Emit(model.AuditEvent{
		EventType:    model.EventTokenValidationFailed,
		TokenID:      v.TokenID,
		SubjectID:    v.SubjectID,
		ServiceName:  v.ServiceName,
		Success:      false,
		ErrorMessage: msg,
		Timestamp:    now,
	})
	return v
}

func (e *Engine) entryTTL(expiresAt, now time.Time) time.Duration {
	remaining := expiresAt.Sub(now)
	if remaining > e.cfg.CacheTTL {
		return e.cfg.CacheTTL
	}
	return remaining
}

func (e *Engine) tierForEntry(entry *model.CacheEntry) ratelimit.Tier {
	scopes, err := model.ParseScopes(entry.Scope)
	if err != nil {
		// Scope was validated at provisioning; a parse failure here means
		// a corrupted entry, which gets the most conservative tier.
		return ratelimit.TierStandard
	}
	return ratelimit.TierFor(scopes)
}

func (e *Engine) policyFor(tier ratelimit.Tier) RateLimitPolicy {
	limits := e.cfg.RateLimits
	if limits.Window <= 0 {
		limits = ratelimit.DefaultLimits()
	}
	var limit int
	switch tier {
	case ratelimit.TierAdmin:
		limit = limits.Admin
	case ratelimit.TierService:
		limit = limits.Service
	case ratelimit.TierElevated:
		limit = limits.Elevated
	default:
		limit = limits.Standard
	}
	return RateLimitPolicy{Tier: tier, Limit: limit, Window: limits.Window}
}

func entryFromRecord(rec *model.TokenRecord) *model.CacheEntry {
	return &model.CacheEntry{
		TokenID:      rec.TokenID,
		SubjectID:    rec.SubjectID,
		ServiceName:  rec.ServiceName,
		Scope:        rec.Scope,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		RequestCount: rec.RequestCount,
	}
}

func verdictFromEntry(entry *model.CacheEntry) *Verdict {
	return &Verdict{
		TokenID:     entry.TokenID,
		SubjectID:   entry.SubjectID,
		ServiceName: entry.ServiceName,
		Scope:       entry.Scope,
		ExpiresAt:   entry.ExpiresAt,
	}
}

// newTokenID generates an opaque tok_<hex> identifier with 128 bits of
// randomness.
func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "tok_" + hex.EncodeToString(b), nil
}
