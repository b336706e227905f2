package httpapi

import (
	"net/http"

	"github.com/authcore-io/authcore/internal/auth"
)

const grantTypeRefreshToken = "refresh_token"

type validateRequest struct {
	Token string `json:"token"`
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleTokenValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Token == "" {
		writeError(w, r, auth.ErrMissingToken)
		return
	}
	claims, err := a.authz.ValidateToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.authz.User(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Downstream gateways read the identity from the headers; the body
	// mirrors it for direct callers.
	w.Header().Set(HeaderUserID, user.ID)
	w.Header().Set(HeaderOrganizationID, user.OrganizationID)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
	})
}

func (a *API) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, err := callerIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.GrantType != grantTypeRefreshToken {
		writeError(w, r, auth.ErrInvalidGrant)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, auth.ErrMissingToken)
		return
	}
	tokens, err := a.authz.Refresh(r.Context(), caller.UserID, req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
	})
}
