package secrets

import (
	"context"
	"os"
)

// EnvSource reads the credential bundle from same-named environment
// variables. Intended for local development against a stub provider.
type EnvSource struct{}

// Fetch reads the four variables from the process environment.
func (EnvSource) Fetch(ctx context.Context) (ProviderSecrets, error) {
	values := make(map[string]string, 4)
	for _, key := range []string{KeyUserPoolID, KeyClientID, KeyClientSecret, KeyJWKSURL} {
		values[key] = os.Getenv(key)
	}
	return FromMap(values)
}
