package signer

import (
	"strings"
	"testing"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(nil); err != ErrMissingKey {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if _, err := New([]byte{}); err != ErrMissingKey {
		t.Errorf("expected ErrMissingKey for empty key, got %v", err)
	}
	if _, err := New([]byte("k")); err != nil {
		t.Errorf("New with key: %v", err)
	}
}

func TestSignDeterministic(t *testing.T) {
	s, err := New([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := s.Sign([]byte("payload"))
	b := s.Sign([]byte("payload"))
	if a != b {
		t.Errorf("same payload signed differently: %q vs %q", a, b)
	}
	if len(a) != SignatureLength {
		t.Errorf("signature length: got %d, want %d", len(a), SignatureLength)
	}

	if c := s.Sign([]byte("other payload")); c == a {
		t.Error("distinct payloads produced the same signature")
	}
}

func TestSignKeyed(t *testing.T) {
	s1, _ := New([]byte("key-one"))
	s2, _ := New([]byte("key-two"))

	if s1.Sign([]byte("payload")) == s2.Sign([]byte("payload")) {
		t.Error("distinct keys produced the same signature")
	}
}

func TestHash(t *testing.T) {
	h := Hash("ck_test_sometoken")
	if len(h) != 64 {
		t.Errorf("hash length: got %d, want 64", len(h))
	}
	if h != Hash("ck_test_sometoken") {
		t.Error("hash is not deterministic")
	}
	if strings.ToLower(h) != h {
		t.Error("hash should be lowercase hex")
	}
	if Hash("ck_test_other") == h {
		t.Error("distinct tokens produced the same hash")
	}
}
