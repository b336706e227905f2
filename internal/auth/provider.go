package auth

import "context"

// TokenSet is the provider's answer to a successful authentication grant.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int32  `json:"expires_in,omitempty"`
}

// IdentityProvider is the administrative seam to the external identity
// provider. Implementations translate provider error codes to the typed
// errors of this package (ErrUserAlreadyExists, ErrAuthenticationFailed,
// ErrInvalidPassword); anything else surfaces wrapped in ErrUpstream.
type IdentityProvider interface {
	// CreateAccount provisions an account keyed by email and returns the
	// provider-assigned subject id.
	CreateAccount(ctx context.Context, email string) (string, error)

	// DeleteAccount removes the account keyed by username.
	DeleteAccount(ctx context.Context, username string) error

	// SetPassword sets the account password, permanently if permanent is true.
	SetPassword(ctx context.Context, username, password string, permanent bool) error

	// MarkEmailVerified flags the account's email address as verified.
	MarkEmailVerified(ctx context.Context, username string) error

	// PasswordAuth runs the password grant with the precomputed secret hash.
	PasswordAuth(ctx context.Context, username, email, password, secretHash string) (TokenSet, error)

	// RefreshAuth runs the refresh-token grant with the precomputed secret hash.
	RefreshAuth(ctx context.Context, refreshToken, secretHash string) (TokenSet, error)
}
