package auth

import (
	"context"
	"errors"
	"strconv"
)

// Authorizer orchestrates token verification, directory lookups and
// permission checks. Every read consults the per-instance caches first and
// only falls through to a collaborator on a miss; a collaborator failure is
// returned to the caller and never populates a cache.
type Authorizer struct {
	verifier *Verifier
	keys     *KeySetCache
	store    UserStore
	provider IdentityProvider
	hasher   *SecretHasher
	caches   *Caches

	observeCache func(name string, hit bool)
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithCaches overrides the default cache sizing.
func WithCaches(c *Caches) AuthorizerOption {
	return func(a *Authorizer) {
		if c != nil {
			a.caches = c
		}
	}
}

// WithCacheObserver registers a callback invoked on every cache lookup,
// typically to feed metrics.
func WithCacheObserver(fn func(name string, hit bool)) AuthorizerOption {
	return func(a *Authorizer) {
		if fn != nil {
			a.observeCache = fn
		}
	}
}

// NewAuthorizer wires the orchestrator. All collaborators are required.
func NewAuthorizer(verifier *Verifier, keys *KeySetCache, store UserStore, provider IdentityProvider, hasher *SecretHasher, opts ...AuthorizerOption) (*Authorizer, error) {
	if verifier == nil {
		return nil, errors.New("auth: verifier is required")
	}
	if keys == nil {
		return nil, errors.New("auth: key set cache is required")
	}
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	if provider == nil {
		return nil, errors.New("auth: identity provider is required")
	}
	if hasher == nil {
		return nil, errors.New("auth: secret hasher is required")
	}
	a := &Authorizer{
		verifier:     verifier,
		keys:         keys,
		store:        store,
		provider:     provider,
		hasher:       hasher,
		caches:       NewCaches(CacheSizing{}),
		observeCache: func(string, bool) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Caches exposes the cache registry, mainly for invalidation after mutations.
func (a *Authorizer) Caches() *Caches { return a.caches }

// ValidateToken verifies the token signature, issuer and expiry. When the
// token references a key id the current set does not hold, the set is
// refreshed once and verification retried, so a provider key rotation does
// not reject valid tokens until the TTL elapses.
func (a *Authorizer) ValidateToken(ctx context.Context, token string) (Claims, error) {
	claims, err := a.verifier.Validate(ctx, token)
	if !errors.Is(err, ErrUnknownKey) {
		return claims, err
	}
	if _, rerr := a.keys.Refresh(ctx); rerr != nil {
		return Claims{}, rerr
	}
	return a.verifier.Validate(ctx, token)
}

// User returns the directory record for id, cache first.
func (a *Authorizer) User(ctx context.Context, id string) (User, error) {
	if u, ok := a.caches.Users.Get(id); ok {
		a.observeCache("users", true)
		return u, nil
	}
	a.observeCache("users", false)
	u, err := a.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	a.caches.Users.Set(id, u)
	return u, nil
}

// OrganizationUsers lists the members of orgID, cache first.
func (a *Authorizer) OrganizationUsers(ctx context.Context, orgID string) ([]User, error) {
	if users, ok := a.caches.OrgUsers.Get(orgID); ok {
		a.observeCache("org_users", true)
		return users, nil
	}
	a.observeCache("org_users", false)
	users, err := a.store.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	a.caches.OrgUsers.Set(orgID, users)
	return users, nil
}

func decisionKey(userID string, perm Permission) string {
	return userID + ":" + strconv.FormatUint(uint64(perm), 10)
}

// Require checks that the user identified by userID holds perm. A denial is
// ErrInsufficientPermissions; only the boolean outcome is cached, so a
// directory failure is retried on the next call.
func (a *Authorizer) Require(ctx context.Context, userID string, perm Permission) error {
	key := decisionKey(userID, perm)
	if allowed, ok := a.caches.Decisions.Get(key); ok {
		a.observeCache("decisions", true)
		if !allowed {
			return ErrInsufficientPermissions
		}
		return nil
	}
	a.observeCache("decisions", false)
	u, err := a.User(ctx, userID)
	if err != nil {
		return err
	}
	allowed := u.HasPermission(perm)
	a.caches.Decisions.Set(key, allowed)
	if !allowed {
		return ErrInsufficientPermissions
	}
	return nil
}

// Authorize verifies token and then requires perm for its subject. It is
// the single call sites use to gate an operation on a bearer token.
func (a *Authorizer) Authorize(ctx context.Context, token string, perm Permission) (Claims, error) {
	claims, err := a.ValidateToken(ctx, token)
	if err != nil {
		return Claims{}, err
	}
	if err := a.Require(ctx, claims.Subject, perm); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// SecretHash returns the per-username client secret hash, computing it at
// most once per TTL window.
func (a *Authorizer) SecretHash(username string) (string, error) {
	if h, ok := a.caches.Hashes.Get(username); ok {
		a.observeCache("hashes", true)
		return h, nil
	}
	a.observeCache("hashes", false)
	h, err := a.hasher.Calculate(username)
	if err != nil {
		return "", err
	}
	a.caches.Hashes.Set(username, h)
	return h, nil
}

// Login runs the password grant for the user. The username keys the secret
// hash; the email is what the provider authenticates against.
func (a *Authorizer) Login(ctx context.Context, username, email, password string) (TokenSet, error) {
	hash, err := a.SecretHash(username)
	if err != nil {
		return TokenSet{}, err
	}
	tokens, err := a.provider.PasswordAuth(ctx, username, email, password, hash)
	if err != nil {
		return TokenSet{}, err
	}
	return tokens, nil
}

// Refresh exchanges a refresh token for a fresh token set. The secret hash
// is still keyed by the username the tokens were issued to.
func (a *Authorizer) Refresh(ctx context.Context, username, refreshToken string) (TokenSet, error) {
	hash, err := a.SecretHash(username)
	if err != nil {
		return TokenSet{}, err
	}
	tokens, err := a.provider.RefreshAuth(ctx, refreshToken, hash)
	if err != nil {
		return TokenSet{}, err
	}
	return tokens, nil
}

// InvalidateUser drops the cached record and decisions for a single user.
// Decisions are keyed per permission, so the whole decision cache goes.
func (a *Authorizer) InvalidateUser(userID string) {
	a.caches.Users.Delete(userID)
	a.caches.Decisions.InvalidateAll()
}

// InvalidateOrganization drops the cached member list for orgID.
func (a *Authorizer) InvalidateOrganization(orgID string) {
	a.caches.OrgUsers.Delete(orgID)
}
