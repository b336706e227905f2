package httpapi

import (
	"net/http"

	"github.com/authcore-io/authcore/internal/audit"
	"github.com/authcore-io/authcore/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken    string `json:"access_token"`
	IDToken        string `json:"id_token,omitempty"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	ExpiresIn      int32  `json:"expires_in,omitempty"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.directory.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.authz.InvalidateOrganization(user.OrganizationID)
	_ = audit.LogEvent(r.Context(), audit.EventSignup, map[string]any{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "signup successfully.",
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, err := callerIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, auth.ErrAuthenticationFailed)
		return
	}
	tokens, err := a.authz.Login(r.Context(), caller.UserID, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"user_id": caller.UserID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:    tokens.AccessToken,
		IDToken:        tokens.IDToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresIn:      tokens.ExpiresIn,
		UserID:         caller.UserID,
		OrganizationID: caller.OrganizationID,
	})
}
