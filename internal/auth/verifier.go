package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, verified token payload: the required registered
// claims plus a passthrough map for everything else the issuer put in.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  int64
	ExpiresAt int64
	Extra     map[string]any
}

// Verifier validates compact signed tokens against the issuer's key set.
// It does no retries; the retry-after-refresh policy on unknown key ids
// belongs to the Authorizer.
type Verifier struct {
	keys   *KeySetCache
	issuer string
	now    func() time.Time
}

// NewVerifier builds a verifier trusting tokens issued by issuer and signed
// with a key from keys.
func NewVerifier(keys *KeySetCache, issuer string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, now: time.Now}
}

// Validate checks structure, signature, expiry and issuer of token and
// returns its claims. Failures map onto exactly one of ErrMalformedToken,
// ErrUnknownKey, ErrSignatureInvalid, ErrIssuerMismatch or ErrTokenExpired.
func (v *Verifier) Validate(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	payload := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, payload, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformedToken.Withf("token header missing kid")
		}
		set, err := v.keys.Get(ctx)
		if err != nil {
			return nil, err
		}
		key, ok := set[kid]
		if !ok {
			return nil, ErrUnknownKey.Withf("no key for kid %q", kid)
		}
		return key.Key, nil
	})
	if err != nil {
		return Claims{}, v.mapParseError(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrSignatureInvalid
	}
	return claimsFromPayload(payload)
}

func (v *Verifier) mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey.With(err)
	case errors.Is(err, ErrKeySetFetch):
		return ErrUpstream.With(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired.With(err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch.With(err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid.With(err)
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformedToken.With(err)
	default:
		return ErrMalformedToken.With(err)
	}
}

var registeredClaimNames = map[string]struct{}{
	"sub": {}, "iss": {}, "iat": {}, "exp": {},
}

func claimsFromPayload(payload jwt.MapClaims) (Claims, error) {
	sub, _ := payload["sub"].(string)
	if sub == "" {
		return Claims{}, ErrMalformedToken.Withf("token missing subject")
	}
	claims := Claims{Subject: sub}
	if iss, ok := payload["iss"].(string); ok {
		claims.Issuer = iss
	}
	claims.IssuedAt = numericClaim(payload["iat"])
	claims.ExpiresAt = numericClaim(payload["exp"])

	for name, value := range payload {
		if _, ok := registeredClaimNames[name]; ok {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[name] = value
	}
	return claims, nil
}

func numericClaim(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
