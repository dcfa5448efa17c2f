package control

import (
	"testing"
	"time"
)

func TestCreateUserAndValidateCredentials(t *testing.T) {
	store := NewInMemoryUserStore()
	if _, err := store.CreateUser("operator", "s3cret", "operator"); err != nil {
		t.Fatalf("unexpected error creating user: %v", err)
	}

	user, err := store.ValidateCredentials("operator", "s3cret")
	if err != nil {
		t.Fatalf("expected valid credentials, got error: %v", err)
	}
	if user.Role != "operator" {
		t.Fatalf("expected role operator, got %s", user.Role)
	}

	if _, err := store.ValidateCredentials("operator", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	store := NewInMemoryUserStore()
	if _, err := store.CreateUser("admin", "pw", "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.CreateUser("admin", "pw2", "admin"); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestJWTManagerIssueAndValidateRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Minute)
	user := &User{ID: "u1", Username: "admin", Role: "admin"}

	token, expiresAt, err := mgr.Issue(user)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected expiresAt in the future")
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("unexpected error validating token: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("expected username admin, got %s", claims.Username)
	}
}

func TestJWTManagerRejectsTamperedToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Minute)
	user := &User{ID: "u1", Username: "admin", Role: "admin"}
	token, _, _ := mgr.Issue(user)

	if _, err := mgr.Validate(token + "x"); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestTokenAuthenticatorValidate(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Minute)
	auth := NewTokenAuthenticator(mgr)

	if auth.Validate("") {
		t.Fatal("expected empty token to be rejected")
	}
	if auth.Validate("garbage") {
		t.Fatal("expected garbage token to be rejected")
	}

	token, _, _ := mgr.Issue(&User{ID: "u1", Username: "viewer", Role: "viewer"})
	if !auth.Validate(token) {
		t.Fatal("expected a freshly issued token to validate")
	}
}
