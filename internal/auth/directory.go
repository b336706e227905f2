package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/internal/validation"
)

// Directory owns account provisioning and the mutating directory
// operations: signup, administrative user creation, update and deletion.
// Reads go through the Authorizer; everything here writes.
type Directory struct {
	store    UserStore
	provider IdentityProvider

	newOrgID    func() string
	newPassword func() (string, error)
	logf        func(entry map[string]any)
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithOrgIDGenerator overrides organization id generation, mainly in tests.
func WithOrgIDGenerator(fn func() string) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.newOrgID = fn
		}
	}
}

// WithPasswordGenerator overrides temporary password generation.
func WithPasswordGenerator(fn func() (string, error)) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.newPassword = fn
		}
	}
}

// WithDirectoryLogger routes operational log entries, e.g. failed
// compensation, to the given sink.
func WithDirectoryLogger(fn func(entry map[string]any)) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.logf = fn
		}
	}
}

// NewDirectory wires the provisioning service.
func NewDirectory(store UserStore, provider IdentityProvider, opts ...DirectoryOption) (*Directory, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	if provider == nil {
		return nil, errors.New("auth: identity provider is required")
	}
	d := &Directory{
		store:       store,
		provider:    provider,
		newOrgID:    uuid.NewString,
		newPassword: validation.GeneratePassword,
		logf:        func(map[string]any) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SignupRequest carries the self-service registration fields.
type SignupRequest struct {
	OrganizationName string `json:"organization_name"`
	UserName         string `json:"user_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// Validate applies the field policies. The first violation wins.
func (r SignupRequest) Validate() error {
	if !validation.ValidOrganizationName(r.OrganizationName) {
		return ErrInvalidOrganizationName
	}
	if !validation.ValidUserName(r.UserName) {
		return ErrInvalidUserName
	}
	if !validation.ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if !validation.ValidPassword(r.Password) {
		return ErrInvalidPassword
	}
	return nil
}

// Signup registers a new principal. Joining an existing organization grants
// Writer; founding a new one grants Admin over a freshly minted id. If the
// directory write fails after the provider account exists, the account is
// deleted again so the email is not burned.
func (d *Directory) Signup(ctx context.Context, req SignupRequest) (User, error) {
	if err := req.Validate(); err != nil {
		return User{}, err
	}

	orgID, role, err := d.resolveOrganization(ctx, req.OrganizationName)
	if err != nil {
		return User{}, err
	}

	subject, err := d.provider.CreateAccount(ctx, req.Email)
	if err != nil {
		return User{}, err
	}
	if err := d.provider.SetPassword(ctx, req.Email, req.Password, true); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, err
	}
	if err := d.provider.MarkEmailVerified(ctx, req.Email); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, err
	}

	user := NewUser(subject, req.UserName, req.Email, orgID, req.OrganizationName, RoleSet{role: {}})
	if err := d.store.Put(ctx, user); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, fmt.Errorf("store signup record: %w", err)
	}
	return user, nil
}

func (d *Directory) resolveOrganization(ctx context.Context, name string) (string, Role, error) {
	orgID, err := d.store.FindOrganizationIDByName(ctx, name)
	if err != nil {
		return "", "", fmt.Errorf("resolve organization %q: %w", name, err)
	}
	if orgID != "" {
		return orgID, RoleWriter, nil
	}
	return d.newOrgID(), RoleAdmin, nil
}

// compensate removes a provider account left behind by a failed signup.
// A failure here is logged and swallowed; the caller already has an error.
func (d *Directory) compensate(ctx context.Context, username string) {
	if err := d.provider.DeleteAccount(ctx, username); err != nil {
		d.logf(map[string]any{
			"level": "error",
			"msg":   "orphaned provider account could not be removed",
			"error": err.Error(),
		})
	}
}

// CreateUserRequest carries the administrative user-creation fields. The
// organization id comes from the URL, not the body.
type CreateUserRequest struct {
	UserName         string `json:"user_name"`
	Email            string `json:"email"`
	OrganizationName string `json:"organization_name"`
	Roles            []Role `json:"roles"`
}

// Validate applies the field policies.
func (r CreateUserRequest) Validate() error {
	if !validation.ValidUserName(r.UserName) {
		return ErrInvalidUserName
	}
	if !validation.ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if !validation.ValidOrganizationName(r.OrganizationName) {
		return ErrInvalidOrganizationName
	}
	if len(r.Roles) == 0 {
		return ErrMissingRoles
	}
	for _, role := range r.Roles {
		if _, err := ParseRole(string(role)); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser provisions an account within orgID on behalf of an
// administrator and returns the record together with the generated
// temporary password.
func (d *Directory) CreateUser(ctx context.Context, orgID string, req CreateUserRequest) (User, string, error) {
	if err := req.Validate(); err != nil {
		return User{}, "", err
	}

	password, err := d.newPassword()
	if err != nil {
		return User{}, "", fmt.Errorf("generate temporary password: %w", err)
	}

	subject, err := d.provider.CreateAccount(ctx, req.Email)
	if err != nil {
		return User{}, "", err
	}
	if err := d.provider.SetPassword(ctx, req.Email, password, true); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, "", err
	}
	if err := d.provider.MarkEmailVerified(ctx, req.Email); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, "", err
	}

	user := NewUser(subject, req.UserName, req.Email, orgID, req.OrganizationName, nil)
	user.SetRoles(req.Roles)
	if err := d.store.Put(ctx, user); err != nil {
		d.compensate(ctx, req.Email)
		return User{}, "", fmt.Errorf("store user record: %w", err)
	}
	return user, password, nil
}

// UpdateUserRequest carries the mutable fields. Empty fields keep their
// stored values; a nil Roles slice keeps the stored roles.
type UpdateUserRequest struct {
	UserName         string `json:"user_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Roles            []Role `json:"roles,omitempty"`
}

// Validate applies the field policies to the fields that are present.
func (r UpdateUserRequest) Validate() error {
	if r.UserName != "" && !validation.ValidUserName(r.UserName) {
		return ErrInvalidUserName
	}
	if r.OrganizationName != "" && !validation.ValidOrganizationName(r.OrganizationName) {
		return ErrInvalidOrganizationName
	}
	for _, role := range r.Roles {
		if _, err := ParseRole(string(role)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateUser applies req to the stored record of id within orgID and
// returns the record as stored after the write.
func (d *Directory) UpdateUser(ctx context.Context, id, orgID string, req UpdateUserRequest) (User, error) {
	if err := req.Validate(); err != nil {
		return User{}, err
	}
	current, err := d.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if current.OrganizationID != orgID {
		return User{}, ErrUserNotFound
	}
	if req.UserName != "" {
		current.Name = req.UserName
	}
	if req.OrganizationName != "" {
		current.OrganizationName = req.OrganizationName
	}
	if req.Roles != nil {
		if len(req.Roles) == 0 {
			return User{}, ErrMissingRoles
		}
		current.SetRoles(req.Roles)
	}
	updated, err := d.store.Update(ctx, current)
	if err != nil {
		return User{}, fmt.Errorf("update user record: %w", err)
	}
	return updated, nil
}

// DeleteUser removes the principal from both the provider and the
// directory. The provider goes first so a half-deleted user cannot log in.
func (d *Directory) DeleteUser(ctx context.Context, id, orgID string) error {
	user, err := d.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.OrganizationID != orgID {
		return ErrUserNotFound
	}
	if err := d.provider.DeleteAccount(ctx, user.Email); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, id, orgID); err != nil {
		return fmt.Errorf("delete user record: %w", err)
	}
	return nil
}
