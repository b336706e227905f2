package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testIssuer = "https://idp.example.com/pool"

type staticKeySource struct {
	set KeySet
}

func (s *staticKeySource) Fetch(ctx context.Context) (KeySet, error) {
	return s.set, nil
}

func newVerifierFixture(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	src := &staticKeySource{set: KeySet{
		"k1": {Kid: "k1", Alg: "RS256", Key: &priv.PublicKey},
	}}
	return NewVerifier(NewKeySetCache(src, time.Hour), testIssuer), priv
}

func signToken(t *testing.T, priv *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": "user-42",
		"iss": testIssuer,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func TestValidateOK(t *testing.T) {
	v, priv := newVerifierFixture(t)
	payload := baseClaims()
	payload["custom:tenant"] = "acme"
	token := signToken(t, priv, "k1", payload)

	claims, err := v.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Issuer != testIssuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Extra["custom:tenant"] != "acme" {
		t.Fatalf("extra claims not carried: %v", claims.Extra)
	}
}

func TestValidateExpired(t *testing.T) {
	v, priv := newVerifierFixture(t)
	payload := baseClaims()
	payload["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	payload["exp"] = time.Now().Add(-time.Hour).Unix()
	token := signToken(t, priv, "k1", payload)

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateWrongIssuer(t *testing.T) {
	v, priv := newVerifierFixture(t)
	payload := baseClaims()
	payload["iss"] = "https://evil.example.com"
	token := signToken(t, priv, "k1", payload)

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch, got %v", err)
	}
}

func TestValidateUnknownKid(t *testing.T) {
	v, priv := newVerifierFixture(t)
	token := signToken(t, priv, "rotated", baseClaims())

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestValidateMissingKid(t *testing.T) {
	v, priv := newVerifierFixture(t)
	token := signToken(t, priv, "", baseClaims())

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestValidateWrongSignature(t *testing.T) {
	v, _ := newVerifierFixture(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	token := signToken(t, other, "k1", baseClaims())

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	v, _ := newVerifierFixture(t)
	for _, token := range []string{"not-a-token", "a.b", "a.b.c.d"} {
		if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected ErrMalformedToken for %q, got %v", token, err)
		}
	}
}

func TestValidateMissingSubject(t *testing.T) {
	v, priv := newVerifierFixture(t)
	payload := baseClaims()
	delete(payload, "sub")
	token := signToken(t, priv, "k1", payload)

	if _, err := v.Validate(context.Background(), token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestValidateEmptyToken(t *testing.T) {
	v, _ := newVerifierFixture(t)
	if _, err := v.Validate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestFailureClassesAreDistinguishable(t *testing.T) {
	// Expiry must not fall into the invalid-token class: callers surface
	// the two differently.
	if IsInvalidTokenClass(ErrTokenExpired) {
		t.Fatalf("expired must not be in the invalid class")
	}
	for _, err := range []error{ErrMalformedToken, ErrUnknownKey, ErrSignatureInvalid, ErrIssuerMismatch} {
		if !IsInvalidTokenClass(err) {
			t.Fatalf("%v must be in the invalid class", err)
		}
	}
}
