package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

const testSigningKey = "test-signing-key-at-least-32-bytes"

func TestVerifyValidToken(t *testing.T) {
	verifier, err := NewTokenVerifier(testSigningKey, "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	signed, err := verifier.Sign("user-1", domain.RoleManager, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	actor, err := verifier.Verify(signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if actor.ID != "user-1" {
		t.Fatalf("actor.ID = %s, want user-1", actor.ID)
	}
	if actor.Role != domain.RoleManager {
		t.Fatalf("actor.Role = %s, want %s", actor.Role, domain.RoleManager)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier, err := NewTokenVerifier(testSigningKey, "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	signed, err := verifier.Sign("user-1", domain.RoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	issuer, err := NewTokenVerifier(testSigningKey, "other-service")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	signed, err := issuer.Sign("user-1", domain.RoleUser, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier, err := NewTokenVerifier(testSigningKey, "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	issuer, err := NewTokenVerifier("a-completely-different-signing-key", "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	signed, err := issuer.Sign("user-1", domain.RoleUser, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier, err := NewTokenVerifier(testSigningKey, "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	verifier, err := NewTokenVerifier(testSigningKey, "ibms-identity")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &AccessClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "ibms-identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := verifier.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	verifier, err := NewTokenVerifier(testSigningKey, "")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	actor, err := verifier.Verify(signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if actor.ID != "user-2" {
		t.Fatalf("actor.ID = %s, want user-2", actor.ID)
	}
	if actor.Role != domain.RoleUser {
		t.Fatalf("actor.Role = %s, want %s", actor.Role, domain.RoleUser)
	}
}

func TestNewTokenVerifierRequiresKey(t *testing.T) {
	if _, err := NewTokenVerifier("   ", "ibms-identity"); err == nil {
		t.Fatal("expected an error for a blank signing key")
	}
}
