// Package auth issues and verifies signed connection tokens using
// HMAC-SHA256.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verification errors.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrBadSignature   = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the payload carried inside a connection token.
type Claims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier signs and verifies connection tokens with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier from a shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign produces a token for the given claims.
// Token format: base64url(payload) + "." + base64url(hmac-sha256(payload)).
func (v *Verifier) Sign(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + v.signature(encoded), nil
}

// Verify checks a token's signature and expiry and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrTokenMalformed
	}

	if !hmac.Equal([]byte(sig), []byte(v.signature(encoded))) {
		return nil, ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrTokenMalformed
	}
	if claims.UserID == "" {
		return nil, ErrTokenMalformed
	}

	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (v *Verifier) signature(encoded string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
