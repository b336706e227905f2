// Package httpapi is the HTTP surface of the service: request decoding,
// caller identity, permission gating and the error contract.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/authcore-io/authcore/internal/auth"
	"github.com/authcore-io/authcore/internal/obs"
)

// ReadyProbe checks the dependencies readiness should gate on. A nil DB
// means the dynamo driver is active and there is nothing to ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the authorizer and the directory.
type API struct {
	mux        *http.ServeMux
	authz      *auth.Authorizer
	directory  *auth.Directory
	readyProbe ReadyProbe
	version    string
}

// New wires the routes.
func New(authz *auth.Authorizer, directory *auth.Directory, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		authz:      authz,
		directory:  directory,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/tokens/refresh", a.handleTokenRefresh)
	a.mux.HandleFunc("/tokens/validate", a.handleTokenValidate)
	a.mux.HandleFunc("/organizations/", a.handleOrganizationScoped)

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, auth.ErrUserNotFound.Withf("no route for %s", r.URL.Path))
	})

	return a
}

// Handler returns the mux wrapped in the standard middleware chain.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = CallerIdentity(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RateLimit(h, 20, 10)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authcore",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire contract for failures: a machine code and a human
// message. Internal causes never leave the process.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps err onto the error contract. Every verifier failure
// except expiry reports the same invalid_token code so the response does
// not leak which check rejected the token.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *auth.Error
	if !errors.As(err, &typed) {
		typed = auth.ErrInternal
	}
	code, message, status := typed.Code, typed.Message, typed.Status
	if auth.IsInvalidTokenClass(typed) {
		code, message = auth.ErrMalformedToken.Code, auth.ErrMalformedToken.Message
	}
	if status >= 500 {
		obs.LogJSON(map[string]any{
			"level":  "error",
			"msg":    "request failed",
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
	}
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return auth.ErrMissingBody
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return auth.ErrMissingBody
	}
	if err != nil {
		return auth.ErrInvalidBody.With(err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:   "method_not_allowed",
		Message: "Method " + r.Method + " is not supported on this resource",
	})
}

// callerIdentity returns the gateway-resolved identity or ErrMissingIdentity.
func callerIdentity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		return auth.Identity{}, auth.ErrMissingIdentity
	}
	return id, nil
}
