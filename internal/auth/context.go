package auth

import "context"

type identityContextKey struct{}

// Identity names the caller on whose behalf a request is executed. It is
// extracted from trusted gateway headers before any handler runs.
type Identity struct {
	UserID         string
	OrganizationID string
}

// ContextWithIdentity attaches the caller identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the caller identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}
