package app

import (
	"strings"
	"testing"
)

func TestSignUpAndSignIn(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, err := a.SignUp("alice", "password-123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash == "password-123" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.ProfilePhoto == "" {
		t.Fatalf("expected default profile photo")
	}

	got, err := a.SignIn("alice", "password-123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("sign in returned wrong user: %q", got.ID)
	}

	if _, err := a.SignIn("alice", "wrong"); KindOf(err) != KindUnauthorized {
		t.Fatalf("wrong password: expected unauthorized, got %v", err)
	}
	if _, err := a.SignIn("nobody", "password-123"); KindOf(err) != KindUnauthorized {
		t.Fatalf("unknown user: expected unauthorized, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	a, _, _ := newTestApp(t)

	if _, err := a.SignUp("al", "password-123"); KindOf(err) != KindValidation {
		t.Fatalf("short username: expected validation error, got %v", err)
	}
	if _, err := a.SignUp("alice", "short"); KindOf(err) != KindValidation {
		t.Fatalf("short password: expected validation error, got %v", err)
	}
	if _, err := a.SignUp("alice", strings.Repeat("x", 73)); KindOf(err) != KindValidation {
		t.Fatalf("over-length password: expected validation error, got %v", err)
	}

	if _, err := a.SignUp("alice", "password-123"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := a.SignUp("alice", "password-456"); KindOf(err) != KindConflict {
		t.Fatalf("duplicate username: expected conflict, got %v", err)
	}
}

func TestMe(t *testing.T) {
	a, _, _ := newTestApp(t)
	user := mustSignUp(t, a, "alice")

	got, err := a.Me(user.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if _, err := a.Me("missing"); KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
