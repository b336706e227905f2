package auth

import "context"

// UserStore is the persistence seam for directory records. Implementations
// operate on the flat attribute map of User and translate their native
// not-found conditions to ErrUserNotFound.
type UserStore interface {
	// GetByID returns the user with the given subject id.
	GetByID(ctx context.Context, id string) (User, error)

	// ListByOrganization returns every user of the organization.
	ListByOrganization(ctx context.Context, orgID string) ([]User, error)

	// Put writes a new record.
	Put(ctx context.Context, user User) error

	// Update overwrites the mutable attributes and returns the stored record.
	Update(ctx context.Context, user User) (User, error)

	// Delete removes the record identified by id within orgID.
	Delete(ctx context.Context, id, orgID string) error

	// FindOrganizationIDByName resolves an organization name to its id.
	// A missing organization is reported as ("", nil), not an error.
	FindOrganizationIDByName(ctx context.Context, name string) (string, error)
}
