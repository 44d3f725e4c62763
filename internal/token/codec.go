// Package token implements the opaque bearer-token string format:
// an environment prefix followed by the URL-safe base64 encoding of
// "tokenID_unixMillis_signature".
package token

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/signer"
)

// Environment selects the token prefix a deployment mints.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "development"
	EnvService     Environment = "service"
)

// Token prefixes, one per deployment environment. The prefix is a cheap
// structural gate: it identifies where a token came from, never whether it
// is still valid.
const (
	PrefixLive = "ck_live_"
	PrefixTest = "ck_test_"
	PrefixDev  = "ck_dev_"
	PrefixS2S  = "ck_s2s_"
)

var envPrefixes = map[Environment]string{
	EnvProduction:  PrefixLive,
	EnvTest:        PrefixTest,
	EnvDevelopment: PrefixDev,
	EnvService:     PrefixS2S,
}

var knownPrefixes = []string{PrefixLive, PrefixTest, PrefixDev, PrefixS2S}

// ParseEnvironment validates an environment name from configuration.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if _, ok := envPrefixes[env]; !ok {
		return "", fmt.Errorf("unknown environment %q (want production, test, development, or service)", s)
	}
	return env, nil
}

// Codec builds bearer-token strings for one environment. Decoding back to
// claims is deliberately absent: validation re-derives all state by hashing
// the raw token and looking up the stored record, so revocation and scope
// edits take effect without chasing embedded copies.
type Codec struct {
	signer *signer.Signer
	prefix string
}

// NewCodec creates a codec minting tokens with the prefix for env.
func NewCodec(s *signer.Signer, env Environment) (*Codec, error) {
	prefix, ok := envPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", env)
	}
	return &Codec{signer: s, prefix: prefix}, nil
}

// Encode builds the opaque bearer token for a newly provisioned credential.
// The signature covers the token id, subject, service, and mint time.
func (c *Codec) Encode(tokenID, subjectID, serviceName string, ts time.Time) string {
	millis := ts.UnixMilli()
	payload := fmt.Sprintf("%s|%s|%s|%d", tokenID, subjectID, serviceName, millis)
	sig := c.signer.Sign([]byte(payload))

	body := fmt.Sprintf("%s_%d_%s", tokenID, millis, sig)
	return c.prefix + base64.RawURLEncoding.EncodeToString([]byte(body))
}

// Prefix returns the environment prefix this codec mints with.
func (c *Codec) Prefix() string {
	return c.prefix
}

// WellFormed reports whether tok starts with a recognized prefix. This is a
// format gate only: a well-formed token can still be expired, revoked, or
// unknown.
func WellFormed(tok string) bool {
	for _, p := range knownPrefixes {
		if strings.HasPrefix(tok, p) && len(tok) > len(p) {
			return true
		}
	}
	return false
}
