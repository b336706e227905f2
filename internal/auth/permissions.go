package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Permission is a bit-flag capability granted through roles.
type Permission uint32

const (
	PermissionRead Permission = 1 << iota
	PermissionWrite
	PermissionCreate
	PermissionDelete
	PermissionUpdate
)

var permissionNames = []struct {
	perm Permission
	name string
}{
	{PermissionRead, "READ"},
	{PermissionWrite, "WRITE"},
	{PermissionCreate, "CREATE"},
	{PermissionDelete, "DELETE"},
	{PermissionUpdate, "UPDATE"},
}

// Contains reports whether every bit of perm is present in p.
func (p Permission) Contains(perm Permission) bool {
	return p&perm == perm
}

func (p Permission) String() string {
	names := make([]string, 0, len(permissionNames))
	for _, pn := range permissionNames {
		if p.Contains(pn.perm) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ", ")
}

// Role groups a fixed permission set. The set of roles is closed: the store
// encoding rejects anything outside {Admin, Reader, Writer}.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleReader Role = "Reader"
	RoleWriter Role = "Writer"
)

// Permissions returns the fixed permission set of the role.
func (r Role) Permissions() Permission {
	switch r {
	case RoleAdmin:
		return PermissionRead | PermissionWrite | PermissionCreate | PermissionDelete | PermissionUpdate
	case RoleReader:
		return PermissionRead
	case RoleWriter:
		return PermissionRead | PermissionWrite | PermissionCreate
	default:
		return 0
	}
}

func (r Role) String() string { return string(r) }

// ParseRole maps a stored role name back to a Role. Unknown names are a hard
// failure, never silently dropped.
func ParseRole(s string) (Role, error) {
	switch strings.TrimSpace(s) {
	case "Admin":
		return RoleAdmin, nil
	case "Reader":
		return RoleReader, nil
	case "Writer":
		return RoleWriter, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRole, s)
	}
}

// RoleSet is an unordered collection of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Add inserts the role; adding an existing role is a no-op.
func (s RoleSet) Add(role Role) { s[role] = struct{}{} }

// Remove deletes the role; removing an absent role is a no-op.
func (s RoleSet) Remove(role Role) { delete(s, role) }

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Permissions is the bitwise OR over the set's role permissions.
func (s RoleSet) Permissions() Permission {
	var perms Permission
	for role := range s {
		perms |= role.Permissions()
	}
	return perms
}

// Roles returns the members sorted by name, so callers get a stable order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for role := range s {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Encode renders the set in the stable colon-joined store encoding.
func (s RoleSet) Encode() string {
	roles := s.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.String()
	}
	return strings.Join(names, ":")
}

// MarshalJSON renders the set as a sorted array of role names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	roles := s.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.String()
	}
	return json.Marshal(names)
}

// UnmarshalJSON parses an array of role names; unknown names fail.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(RoleSet, len(names))
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			return err
		}
		set.Add(role)
	}
	*s = set
	return nil
}

// DecodeRoleSet parses the colon-joined store encoding. Any unknown role name
// fails the whole decode.
func DecodeRoleSet(encoded string) (RoleSet, error) {
	set := make(RoleSet)
	if strings.TrimSpace(encoded) == "" {
		return set, nil
	}
	for _, part := range strings.Split(encoded, ":") {
		role, err := ParseRole(part)
		if err != nil {
			return nil, err
		}
		set.Add(role)
	}
	return set, nil
}
