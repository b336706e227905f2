// Package secrets resolves the identity-provider credentials the service
// needs at runtime: pool id, client id, client secret and the JWKS URL.
package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Secret ids as stored in the secrets backend.
const (
	KeyUserPoolID   = "COGNITO_USER_POOL_ID"
	KeyClientID     = "COGNITO_CLIENT_ID"
	KeyClientSecret = "COGNITO_CLIENT_SECRET"
	KeyJWKSURL      = "COGNITO_JWKS_URL"
)

// ErrMissingSecret indicates the backend answered but a required secret was
// absent or empty.
var ErrMissingSecret = errors.New("secrets: missing secret")

// ProviderSecrets is the resolved credential bundle.
type ProviderSecrets struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string
	JWKSURL      string
}

// Source fetches the credential bundle from a backend.
type Source interface {
	Fetch(ctx context.Context) (ProviderSecrets, error)
}

// FromMap assembles a bundle from a key→value map, requiring every key.
func FromMap(values map[string]string) (ProviderSecrets, error) {
	var s ProviderSecrets
	for _, field := range []struct {
		key string
		dst *string
	}{
		{KeyUserPoolID, &s.UserPoolID},
		{KeyClientID, &s.ClientID},
		{KeyClientSecret, &s.ClientSecret},
		{KeyJWKSURL, &s.JWKSURL},
	} {
		v, ok := values[field.key]
		if !ok || v == "" {
			return ProviderSecrets{}, fmt.Errorf("%w: %s", ErrMissingSecret, field.key)
		}
		*field.dst = v
	}
	return s, nil
}
