// Package signer provides the deterministic HMAC signature and hash
// primitives shared by the token codec and the lifecycle engine.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// SignatureLength is the number of hex characters the compact token
// signature is truncated to. 32 hex chars carry 16 bytes of HMAC output,
// which is enough collision margin for a display signature; verification
// truncates identically so the cut is not security-relevant.
const SignatureLength = 32

// ErrMissingKey is returned when a Signer is constructed without a key.
var ErrMissingKey = errors.New("signing key is required")

// Signer produces keyed signatures and one-way storage hashes. It is
// constructed once with an explicit key and is safe for concurrent use.
type Signer struct {
	key []byte
}

// New creates a Signer with the given secret key. An empty key is rejected;
// deciding whether a development fallback key is acceptable belongs to the
// caller, not this package.
func New(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	s := &Signer{key: make([]byte, len(key))}
	copy(s.key, key)
	return s, nil
}

// Sign returns the truncated hex HMAC-SHA256 of payload. Same payload and
// key always produce the same output.
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))[:SignatureLength]
}

// Hash returns the hex SHA-256 digest of the raw token string. This is the
// storage key for token records, cache entries, and revocation markers.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
