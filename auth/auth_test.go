package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestVerifyReturnsClaimsIdentity(t *testing.T) {
	minter := NewMinter("test-secret")
	verifier := NewVerifier("test-secret")

	token, err := minter.Mint(Identity{UserID: "u1", Username: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("expected valid token to verify, got %v", err)
	}
	if identity.UserID != "u1" || identity.Username != "alice" {
		t.Fatalf("identity does not match claims: %+v", identity)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	minter := NewMinter("test-secret")
	verifier := NewVerifier("test-secret")

	token, err := minter.Mint(Identity{UserID: "u1", Username: "alice"}, -time.Minute)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := verifier.Verify(token); !isAuthError(err) {
		t.Fatalf("expected AuthError for expired token, got %v", err)
	}
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	verifier := NewVerifier("test-secret")
	if _, err := verifier.Verify(""); !isAuthError(err) {
		t.Fatalf("expected AuthError for missing token, got %v", err)
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	verifier := NewVerifier("test-secret")
	if _, err := verifier.Verify("not-a-token"); !isAuthError(err) {
		t.Fatalf("expected AuthError for malformed token, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	minter := NewMinter("other-secret")
	verifier := NewVerifier("test-secret")

	token, err := minter.Mint(Identity{UserID: "u1", Username: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := verifier.Verify(token); !isAuthError(err) {
		t.Fatalf("expected AuthError for bad signature, got %v", err)
	}
}

func TestVerifyRejectsTokenWithoutExpiry(t *testing.T) {
	claims := jwt.MapClaims{"userId": "u1", "username": "alice"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	verifier := NewVerifier("test-secret")
	if _, err := verifier.Verify(token); !isAuthError(err) {
		t.Fatalf("expected AuthError for token without exp, got %v", err)
	}
}

func TestVerifyRejectsTokenWithoutIdentityClaims(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	verifier := NewVerifier("test-secret")
	if _, err := verifier.Verify(token); !isAuthError(err) {
		t.Fatalf("expected AuthError for token missing identity claims, got %v", err)
	}
}

func isAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
