package authgate

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterCreatesUserAndSession(t *testing.T) {
	engine, provider, _ := newTestEngine(t, engineTestConfig())

	result, err := engine.Register(context.Background(), RegisterRequest{
		Email:     "Alice@Example.com ",
		Password:  "initial-password-1",
		FirstName: "Alice",
		LastName:  "Nguyen",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if result.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", result.User.Email)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if result.Tokens.TokenType != "bearer" {
		t.Fatalf("token type = %q", result.Tokens.TokenType)
	}
	if result.SessionID == "" {
		t.Fatal("expected session id")
	}

	stored := provider.users[result.User.UserID]
	if stored.PasswordHash == "" || stored.PasswordHash == "initial-password-1" {
		t.Fatal("expected stored password to be hashed")
	}
	if !engine.hasher.Verify("initial-password-1", stored.PasswordHash) {
		t.Fatal("expected stored hash to verify")
	}

	// Registration behaves like a first login: the token works immediately.
	id, err := engine.Validate(context.Background(), result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate after register failed: %v", err)
	}
	if id.User.UserID != result.User.UserID {
		t.Fatalf("identity user = %s, want %s", id.User.UserID, result.User.UserID)
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	engine, provider, _ := newTestEngine(t, engineTestConfig())

	first := mustRegister(t, engine, "taken@example.com")

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "taken@example.com",
		Password: "another-password-2",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// The conflict must not leave a second user or a new session behind.
	if len(provider.users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(provider.users))
	}
	sessions, err := engine.Sessions(context.Background(), first.User.UserID)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	if got := engine.metrics.Value(MetricRegisterConflict); got != 1 {
		t.Fatalf("register conflict counter = %d, want 1", got)
	}
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	engine, provider, _ := newTestEngine(t, engineTestConfig())

	if _, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "some-password-1",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty email: expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "empty-pass@example.com",
		Password: "",
	}); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("empty password: expected ErrPasswordPolicy, got %v", err)
	}

	if _, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "short-pass@example.com",
		Password: "short",
	}); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("short password: expected ErrPasswordPolicy, got %v", err)
	}

	if len(provider.users) != 0 {
		t.Fatalf("expected no users created, got %d", len(provider.users))
	}
}

func TestRegisterProviderOutagePropagates(t *testing.T) {
	engine, provider, _ := newTestEngine(t, engineTestConfig())
	provider.failAll = true

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "down@example.com",
		Password: "some-password-1",
	})
	if err == nil || IsAuthFailure(err) || errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected provider error to propagate untranslated, got %v", err)
	}
}
