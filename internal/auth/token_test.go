package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign("alice", time.Hour, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	subject, err := Verify(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("expected subject alice, got %q", subject)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := Sign("alice", time.Hour, []byte("secret-a"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(token, []byte("secret-b")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign("alice", -time.Minute, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(token, secret); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "a.b", "not-a-token", "a.b.c"} {
		if _, err := Verify(tok, []byte("secret")); err == nil {
			t.Fatalf("expected error for %q", tok)
		}
	}
}
