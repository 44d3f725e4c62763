package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// OperatorPrincipal identifies an authenticated operator session. Operators
// drive the management surface (provisioning, revocation, stats); they are
// not token subjects.
type OperatorPrincipal struct {
	OperatorID string
	Name       string
}

// SessionService issues and verifies operator session JWTs. Sessions are
// stateless: everything needed to verify one is in the token itself.
type SessionService struct {
	secret []byte
}

func NewSessionService(secret string) *SessionService {
	return &SessionService{secret: []byte(secret)}
}

// IssueSession creates a signed session token for the given operator.
func (s *SessionService) IssueSession(ctx context.Context, operatorID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "chittyauth",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateSession verifies a session token and returns the operator identity.
func (s *SessionService) ValidateSession(ctx context.Context, tokenStr string) (*OperatorPrincipal, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}

	return &OperatorPrincipal{
		OperatorID: claims.Subject,
		Name:       claims.Name,
	}, nil
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}
