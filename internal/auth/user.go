package auth

import "fmt"

// Attribute names of the flat record shared with the store implementations.
const (
	AttrID               = "id"
	AttrUserName         = "user_name"
	AttrEmail            = "email"
	AttrOrganizationID   = "organization_id"
	AttrOrganizationName = "organization_name"
	AttrRoles            = "roles"
)

// User is the directory record of a principal. ID and OrganizationID are
// fixed at creation; everything else may change through updates.
type User struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	OrganizationID   string  `json:"organization_id"`
	OrganizationName string  `json:"organization_name"`
	Roles            RoleSet `json:"roles"`
}

// NewUser constructs a user record with the given role set.
func NewUser(id, name, email, orgID, orgName string, roles RoleSet) User {
	if roles == nil {
		roles = make(RoleSet)
	}
	return User{
		ID:               id,
		Name:             name,
		Email:            email,
		OrganizationID:   orgID,
		OrganizationName: orgName,
		Roles:            roles,
	}
}

// Permissions is the effective permission set over all of the user's roles.
func (u User) Permissions() Permission { return u.Roles.Permissions() }

// HasPermission reports whether the effective set covers perm.
func (u User) HasPermission(perm Permission) bool {
	return u.Permissions().Contains(perm)
}

func (u *User) AddRole(role Role)     { u.Roles.Add(role) }
func (u *User) RemoveRole(role Role)  { u.Roles.Remove(role) }
func (u User) HasRole(role Role) bool { return u.Roles.Has(role) }

// SetRoles replaces the role set with the given roles.
func (u *User) SetRoles(roles []Role) {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set.Add(r)
	}
	u.Roles = set
}

// Attributes renders the user as the flat attribute map the stores persist.
func (u User) Attributes() map[string]string {
	return map[string]string{
		AttrID:               u.ID,
		AttrUserName:         u.Name,
		AttrEmail:            u.Email,
		AttrOrganizationID:   u.OrganizationID,
		AttrOrganizationName: u.OrganizationName,
		AttrRoles:            u.Roles.Encode(),
	}
}

// UserFromAttributes rebuilds a user from a stored attribute map. Every
// attribute is required; an unknown role name fails the decode.
func UserFromAttributes(item map[string]string) (User, error) {
	var user User
	for _, attr := range []struct {
		name string
		dst  *string
	}{
		{AttrID, &user.ID},
		{AttrUserName, &user.Name},
		{AttrEmail, &user.Email},
		{AttrOrganizationID, &user.OrganizationID},
		{AttrOrganizationName, &user.OrganizationName},
	} {
		v, ok := item[attr.name]
		if !ok || v == "" {
			return User{}, fmt.Errorf("missing or empty %q attribute", attr.name)
		}
		*attr.dst = v
	}
	encoded, ok := item[AttrRoles]
	if !ok {
		return User{}, fmt.Errorf("missing or empty %q attribute", AttrRoles)
	}
	roles, err := DecodeRoleSet(encoded)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles
	return user, nil
}
