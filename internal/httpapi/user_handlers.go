package httpapi

import (
	"net/http"
	"strings"

	"github.com/authcore-io/authcore/internal/audit"
	"github.com/authcore-io/authcore/internal/auth"
)

// handleOrganizationScoped dispatches /organizations/{orgID}/users[/{userID}].
func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/organizations/")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "users" {
		writeError(w, r, auth.ErrUserNotFound.Withf("no route for %s", r.URL.Path))
		return
	}
	orgID := parts[0]
	switch {
	case len(parts) == 2:
		a.handleOrganizationUsers(w, r, orgID)
	case len(parts) == 3 && parts[2] != "":
		a.handleOrganizationUser(w, r, orgID, parts[2])
	default:
		writeError(w, r, auth.ErrUserNotFound.Withf("no route for %s", r.URL.Path))
	}
}

func (a *API) handleOrganizationUsers(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r, orgID)
	case http.MethodPost:
		a.createUser(w, r, orgID)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (a *API) handleOrganizationUser(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, orgID, userID)
	case http.MethodPut:
		a.updateUser(w, r, orgID, userID)
	case http.MethodDelete:
		a.deleteUser(w, r, orgID, userID)
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request, orgID string) {
	users, err := a.authz.OrganizationUsers(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	user, err := a.authz.User(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.OrganizationID != orgID {
		writeError(w, r, auth.ErrUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// requireCaller resolves the gateway identity and checks perm against it.
func (a *API) requireCaller(w http.ResponseWriter, r *http.Request, perm auth.Permission) bool {
	caller, err := callerIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	if err := a.authz.Require(r.Context(), caller.UserID, perm); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request, orgID string) {
	if !a.requireCaller(w, r, auth.PermissionCreate) {
		return
	}
	var req auth.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, tempPassword, err := a.directory.CreateUser(r.Context(), orgID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.authz.InvalidateOrganization(orgID)
	_ = audit.LogEvent(r.Context(), audit.EventUserCreate, map[string]any{
		"user_id":         user.ID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":               user,
		"temporary_password": tempPassword,
	})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	if !a.requireCaller(w, r, auth.PermissionUpdate) {
		return
	}
	var req auth.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.directory.UpdateUser(r.Context(), userID, orgID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Write the fresh record back so the next read does not serve the
	// pre-update entry for the rest of its TTL.
	a.authz.InvalidateUser(userID)
	a.authz.Caches().Users.Set(userID, user)
	a.authz.InvalidateOrganization(orgID)
	_ = audit.LogEvent(r.Context(), audit.EventUserUpdate, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	// Permission is checked before anything is mutated; a denial must
	// leave both the provider and the directory untouched.
	if !a.requireCaller(w, r, auth.PermissionDelete) {
		return
	}
	if err := a.directory.DeleteUser(r.Context(), userID, orgID); err != nil {
		writeError(w, r, err)
		return
	}
	a.authz.InvalidateUser(userID)
	a.authz.InvalidateOrganization(orgID)
	_ = audit.LogEvent(r.Context(), audit.EventUserDelete, map[string]any{
		"user_id":         userID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user deleted.",
	})
}
