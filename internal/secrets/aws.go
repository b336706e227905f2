package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/sync/errgroup"
)

// SecretsManagerAPI is the slice of the AWS client this package uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource fetches the credential bundle from AWS Secrets Manager, one
// secret per key, all four in flight at once.
type AWSSource struct {
	client SecretsManagerAPI
}

// NewAWSSource wraps an already configured Secrets Manager client.
func NewAWSSource(client SecretsManagerAPI) *AWSSource {
	return &AWSSource{client: client}
}

// Fetch retrieves the four provider secrets concurrently. Any failure or
// empty value fails the whole fetch.
func (s *AWSSource) Fetch(ctx context.Context) (ProviderSecrets, error) {
	keys := []string{KeyUserPoolID, KeyClientID, KeyClientSecret, KeyJWKSURL}

	var mu sync.Mutex
	values := make(map[string]string, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			out, err := s.client.GetSecretValue(gctx, &secretsmanager.GetSecretValueInput{
				SecretId: aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("get secret %s: %w", key, err)
			}
			if out.SecretString == nil {
				return fmt.Errorf("%w: %s", ErrMissingSecret, key)
			}
			mu.Lock()
			values[key] = *out.SecretString
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProviderSecrets{}, err
	}
	return FromMap(values)
}
