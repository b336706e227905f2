package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidClientSecret means the configured provider secret is structurally
// unusable; it is the only failure a hash calculation can produce.
var ErrInvalidClientSecret = errors.New("auth: client secret is not configured")

// SecretHasher computes the per-principal keyed hash the provider requires on
// password and refresh grants: base64(HMAC-SHA256(secret, username+clientID)).
// The result is deterministic; callers cache it because the computation
// recurs on every login and refresh.
type SecretHasher struct {
	clientID     string
	clientSecret string
}

// NewSecretHasher validates the shared secret up front so later calculations
// cannot fail on configuration.
func NewSecretHasher(clientID, clientSecret string) (*SecretHasher, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrInvalidClientSecret
	}
	return &SecretHasher{clientID: clientID, clientSecret: clientSecret}, nil
}

// Calculate returns the secret hash for username.
func (h *SecretHasher) Calculate(username string) (string, error) {
	if h == nil || h.clientSecret == "" {
		return "", ErrInvalidClientSecret
	}
	mac := hmac.New(sha256.New, []byte(h.clientSecret))
	mac.Write([]byte(username + h.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
