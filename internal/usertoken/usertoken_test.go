package usertoken

import (
	"testing"
	"time"
)

func TestSignAndVerifySubject(t *testing.T) {
	tokens, err := New(Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, err := tokens.Sign("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	subject, err := tokens.VerifySubject(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, err := New(Config{Secret: "secret-a"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	verifier, err := New(Config{Secret: "secret-b"})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, err := signer.Sign("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.VerifySubject(token); err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens, err := New(Config{Secret: "test-secret", TTL: time.Nanosecond, Leeway: time.Nanosecond})
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	token, err := tokens.Sign("user-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := tokens.VerifySubject(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
}
