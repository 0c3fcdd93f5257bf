package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Claims{
		UserID:    "user-1",
		Username:  "ann",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", claims.UserID)
	}
	if claims.Username != "ann" {
		t.Errorf("Username = %s, want ann", claims.Username)
	}
}

func TestVerifier_NoExpiry(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := v.Verify(token); err != nil {
		t.Errorf("Verify() error = %v, want nil for token without expiry", err)
	}
}

func TestVerifier_Expired(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Sign(Claims{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := v.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a").Sign(Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := NewVerifier("secret-b").Verify(token); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify() error = %v, want ErrBadSignature", err)
	}
}

func TestVerifier_TamperedPayload(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Sign(Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	parts := strings.SplitN(token, ".", 2)
	tampered := "x" + parts[0] + "." + parts[1]

	if _, err := v.Verify(tampered); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Verify() error = %v, want ErrBadSignature", err)
	}
}

func TestVerifier_Malformed(t *testing.T) {
	v := NewVerifier("test-secret")

	for _, token := range []string{"", "no-dot", "a.b.c extra"} {
		if _, err := v.Verify(token); err == nil {
			t.Errorf("Verify(%q) = nil error, want rejection", token)
		}
	}
}
