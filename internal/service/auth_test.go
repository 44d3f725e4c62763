package service

import (
	"context"
	"testing"
	"time"
)

func newTestSessions(t *testing.T) *SessionService {
	t.Helper()
	return NewSessionService("test-secret-key-for-sessions")
}

func TestSessionRoundTrip(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()

	token, err := sessions.IssueSession(ctx, "op-42", "alice", 1*time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	principal, err := sessions.ValidateSession(ctx, token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if principal.OperatorID != "op-42" {
		t.Errorf("OperatorID: got %q, want %q", principal.OperatorID, "op-42")
	}
	if principal.Name != "alice" {
		t.Errorf("Name: got %q, want %q", principal.Name, "alice")
	}
}

func TestSessionExpired(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()

	token, err := sessions.IssueSession(ctx, "op-1", "bob", -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	if _, err := sessions.ValidateSession(ctx, token); err == nil {
		t.Fatal("expected error for expired session")
	}
}

func TestSessionInvalidToken(t *testing.T) {
	sessions := newTestSessions(t)
	ctx := context.Background()

	if _, err := sessions.ValidateSession(ctx, "garbage.token.here"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestSessionWrongSecret(t *testing.T) {
	ctx := context.Background()

	token, err := NewSessionService("secret-a").IssueSession(ctx, "op-1", "eve", time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	_, err = NewSessionService("secret-b").ValidateSession(ctx, token)
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}
