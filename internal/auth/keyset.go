package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultKeySetTTL is how long a fetched key set stays fresh.
const DefaultKeySetTTL = time.Hour

// ErrKeySetFetch wraps any network or parse failure while loading the
// issuer's key set.
var ErrKeySetFetch = errors.New("auth: key set fetch failed")

// SigningKey is one public verification key from the issuer's key set.
type SigningKey struct {
	Kid string
	Alg string
	Key *rsa.PublicKey
}

// KeySet maps key id to verification key. Replaced wholesale on refresh,
// never merged.
type KeySet map[string]SigningKey

// KeySetSource fetches the issuer's current key set.
type KeySetSource interface {
	Fetch(ctx context.Context) (KeySet, error)
}

// KeySetCache holds the most recently fetched key set behind a read-write
// guard. Refresh runs under single-flight so concurrent callers share one
// network fetch, and a failed refresh keeps the previous set in place so
// verification keeps working for not-yet-rotated keys.
type KeySetCache struct {
	source KeySetSource
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	set     KeySet
	fetched time.Time
}

// NewKeySetCache wraps source with a ttl-bounded cache. A non-positive ttl
// falls back to DefaultKeySetTTL.
func NewKeySetCache(source KeySetSource, ttl time.Duration) *KeySetCache {
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	return &KeySetCache{source: source, ttl: ttl, now: time.Now}
}

// Get returns the cached key set, refreshing it first if it is older than the
// TTL or was never fetched.
func (c *KeySetCache) Get(ctx context.Context) (KeySet, error) {
	c.mu.RLock()
	set, fetched := c.set, c.fetched
	c.mu.RUnlock()
	if set != nil && c.now().Sub(fetched) <= c.ttl {
		return set, nil
	}
	return c.refresh(ctx)
}

// Refresh forces a fetch regardless of age. Used by the orchestrator when a
// token references a key id the cached set does not know.
func (c *KeySetCache) Refresh(ctx context.Context) (KeySet, error) {
	c.mu.Lock()
	c.fetched = time.Time{}
	c.mu.Unlock()
	return c.refresh(ctx)
}

func (c *KeySetCache) refresh(ctx context.Context) (KeySet, error) {
	v, err, _ := c.group.Do("keyset", func() (any, error) {
		// Another caller may have refreshed while we waited on the group.
		c.mu.RLock()
		set, fetched := c.set, c.fetched
		c.mu.RUnlock()
		if set != nil && c.now().Sub(fetched) <= c.ttl {
			return set, nil
		}

		fresh, err := c.source.Fetch(ctx)
		if err != nil {
			// Failure is not cached: keep serving the stale set if we have one.
			if set != nil {
				return set, nil
			}
			return nil, fmt.Errorf("%w: %w", ErrKeySetFetch, err)
		}
		if len(fresh) == 0 {
			if set != nil {
				return set, nil
			}
			return nil, fmt.Errorf("%w: empty key set", ErrKeySetFetch)
		}

		c.mu.Lock()
		c.set = fresh
		c.fetched = c.now()
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(KeySet), nil
}

// HTTPKeySetSource fetches a JWKS document over HTTP.
type HTTPKeySetSource struct {
	URL    string
	Client *http.Client
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		Alg string `json:"alg"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// Fetch downloads and parses the JWKS document, keeping only RSA keys.
func (s *HTTPKeySetSource) Fetch(ctx context.Context) (KeySet, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %s", resp.Status)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks document: %w", err)
	}

	set := make(KeySet, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		key, err := rsaKeyFromComponents(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("decode key %s: %w", k.Kid, err)
		}
		set[k.Kid] = SigningKey{Kid: k.Kid, Alg: k.Alg, Key: key}
	}
	return set, nil
}

func rsaKeyFromComponents(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exponent := new(big.Int).SetBytes(eBytes)
	if !exponent.IsInt64() || exponent.Int64() <= 0 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(exponent.Int64()),
	}, nil
}
