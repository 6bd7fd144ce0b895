package mixin

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims are the claims of a request-scoped API token
type tokenClaims struct {
	UID   string `json:"uid"`
	SID   string `json:"sid"`
	Sig   string `json:"sig"`
	Scope string `json:"scp"`
	jwt.RegisteredClaims
}

// SignAuthenticationToken builds an EdDSA-signed bearer token bound to a
// single request (method, uri and body are hashed into the sig claim).
func SignAuthenticationToken(ks *Keystore, method, uri string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	if ks == nil {
		return "", fmt.Errorf("keystore is required")
	}

	key, err := ParsePrivateKey(ks.PrivateKey)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(append([]byte(method+uri), body...))

	claims := tokenClaims{
		UID:   ks.ClientID,
		SID:   ks.SessionID,
		Sig:   hex.EncodeToString(sum[:]),
		Scope: "FULL",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParsePrivateKey decodes an ed25519 session key. Keys are accepted as a
// hex seed, or as a base64 seed or full private key.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("empty session private key")
	}

	raw, err := hex.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode session private key: %w", err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("invalid session private key length %d", len(raw))
	}
}
