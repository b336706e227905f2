package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authcore-io/authcore/internal/auth"
)

const testIssuer = "https://idp.example.com/pool"

type fakeStore struct {
	users map[string]auth.User
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) ListByOrganization(ctx context.Context, orgID string) ([]auth.User, error) {
	var out []auth.User
	for _, u := range f.users {
		if u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) Put(ctx context.Context, user auth.User) error {
	if f.users == nil {
		f.users = make(map[string]auth.User)
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) Update(ctx context.Context, user auth.User) (auth.User, error) {
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) Delete(ctx context.Context, id, orgID string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeStore) FindOrganizationIDByName(ctx context.Context, name string) (string, error) {
	for _, u := range f.users {
		if u.OrganizationName == name {
			return u.OrganizationID, nil
		}
	}
	return "", nil
}

type fakeProvider struct {
	createCalls atomic.Int32
	deleteCalls atomic.Int32
	createErr   error
	authErr     error
}

func (f *fakeProvider) CreateAccount(ctx context.Context, email string) (string, error) {
	f.createCalls.Add(1)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "sub-" + email, nil
}

func (f *fakeProvider) DeleteAccount(ctx context.Context, username string) error {
	f.deleteCalls.Add(1)
	return nil
}

func (f *fakeProvider) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	return nil
}

func (f *fakeProvider) MarkEmailVerified(ctx context.Context, username string) error {
	return nil
}

func (f *fakeProvider) PasswordAuth(ctx context.Context, username, email, password, secretHash string) (auth.TokenSet, error) {
	if f.authErr != nil {
		return auth.TokenSet{}, f.authErr
	}
	return auth.TokenSet{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600}, nil
}

func (f *fakeProvider) RefreshAuth(ctx context.Context, refreshToken, secretHash string) (auth.TokenSet, error) {
	if f.authErr != nil {
		return auth.TokenSet{}, f.authErr
	}
	return auth.TokenSet{AccessToken: "at2", ExpiresIn: 3600}, nil
}

type staticKeySource struct {
	set auth.KeySet
}

func (s *staticKeySource) Fetch(ctx context.Context) (auth.KeySet, error) {
	return s.set, nil
}

type fixture struct {
	store    *fakeStore
	provider *fakeProvider
	handler  http.Handler
	priv     *rsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := &fakeStore{users: map[string]auth.User{
		"admin1":  auth.NewUser("admin1", "Ada Admin", "ada@example.com", "org1", "Acme", auth.NewRoleSet(auth.RoleAdmin)),
		"reader1": auth.NewUser("reader1", "Rita Reader", "rita@example.com", "org1", "Acme", auth.NewRoleSet(auth.RoleReader)),
		"u1":      auth.NewUser("u1", "Walt Writer", "walt@example.com", "org1", "Acme", auth.NewRoleSet(auth.RoleWriter)),
	}}
	provider := &fakeProvider{}

	src := &staticKeySource{set: auth.KeySet{
		"k1": {Kid: "k1", Alg: "RS256", Key: &priv.PublicKey},
	}}
	keys := auth.NewKeySetCache(src, time.Hour)
	verifier := auth.NewVerifier(keys, testIssuer)
	hasher, err := auth.NewSecretHasher("client-id", "client-secret")
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	authz, err := auth.NewAuthorizer(verifier, keys, store, provider, hasher)
	if err != nil {
		t.Fatalf("authorizer: %v", err)
	}
	directory, err := auth.NewDirectory(store, provider,
		auth.WithOrgIDGenerator(func() string { return "org-new" }),
		auth.WithPasswordGenerator(func() (string, error) { return "Temp-Pass-1", nil }),
	)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}

	api := New(authz, directory, ReadyProbe{}, "test")
	return &fixture{store: store, provider: provider, handler: api.Handler(), priv: priv}
}

func (f *fixture) signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(f.priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func tokenClaims(sub string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"iat": time.Now().Add(-time.Minute).Unix(),
		"exp": exp.Unix(),
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func asAdmin() map[string]string {
	return map[string]string{HeaderUserID: "admin1", HeaderOrganizationID: "org1"}
}

func asReader() map[string]string {
	return map[string]string{HeaderUserID: "reader1", HeaderOrganizationID: "org1"}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != code {
		t.Fatalf("error code = %v, want %q", body["error"], code)
	}
}

func TestSignupCreatesFounder(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"organization_name": "Globex",
		"user_name":         "Jane Doe",
		"email":             "jane@example.com",
		"password":          "Password1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["organization_id"] != "org-new" {
		t.Fatalf("expected fresh organization id, got %v", body["organization_id"])
	}
	if body["user_id"] != "sub-jane@example.com" {
		t.Fatalf("unexpected user id %v", body["user_id"])
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.provider.createErr = auth.ErrUserAlreadyExists
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"organization_name": "Globex",
		"user_name":         "Jane Doe",
		"email":             "ada@example.com",
		"password":          "Password1",
	}, nil)
	wantError(t, rec, http.StatusConflict, "user_already_exists")
}

func TestSignupMissingBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/signup", nil, nil)
	wantError(t, rec, http.StatusBadRequest, "missing_body")
}

func TestSignupMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/auth/signup", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestLoginRequiresIdentityHeaders(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "walt@example.com",
		"password": "Password1",
	}, nil)
	wantError(t, rec, http.StatusBadRequest, "missing_identity")
}

func TestLoginOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "walt@example.com",
		"password": "Password1",
	}, map[string]string{HeaderUserID: "u1", HeaderOrganizationID: "org1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] != "at" || body["user_id"] != "u1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.provider.authErr = auth.ErrAuthenticationFailed
	rec := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "walt@example.com",
		"password": "wrong",
	}, map[string]string{HeaderUserID: "u1"})
	wantError(t, rec, http.StatusUnauthorized, "authentication_failed")
}

func TestLoginEmptyCredentials(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "walt@example.com",
	}, map[string]string{HeaderUserID: "u1"})
	wantError(t, rec, http.StatusUnauthorized, "authentication_failed")
}

func TestRefreshRejectsWrongGrantType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/tokens/refresh", map[string]string{
		"grant_type":    "password",
		"refresh_token": "rt",
	}, map[string]string{HeaderUserID: "u1"})
	wantError(t, rec, http.StatusBadRequest, "invalid_grant")
}

func TestRefreshOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/tokens/refresh", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "rt",
	}, map[string]string{HeaderUserID: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] != "at2" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestValidateMirrorsIdentityInHeaders(t *testing.T) {
	f := newFixture(t)
	token := f.signToken(t, tokenClaims("u1", time.Now().Add(time.Hour)))
	rec := f.do(t, http.MethodPost, "/tokens/validate", map[string]string{"token": token}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderUserID) != "u1" || rec.Header().Get(HeaderOrganizationID) != "org1" {
		t.Fatalf("identity headers not mirrored: %v", rec.Header())
	}
	body := decodeBody(t, rec)
	if body["user_id"] != "u1" || body["organization_id"] != "org1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestValidateExpiredTokenKeepsItsCode(t *testing.T) {
	f := newFixture(t)
	token := f.signToken(t, tokenClaims("u1", time.Now().Add(-time.Hour)))
	rec := f.do(t, http.MethodPost, "/tokens/validate", map[string]string{"token": token}, nil)
	wantError(t, rec, http.StatusUnauthorized, "token_expired")
}

func TestValidateOtherFailuresCollapseToInvalidToken(t *testing.T) {
	f := newFixture(t)
	claims := tokenClaims("u1", time.Now().Add(time.Hour))
	claims["iss"] = "https://evil.example.com"
	token := f.signToken(t, claims)
	rec := f.do(t, http.MethodPost, "/tokens/validate", map[string]string{"token": token}, nil)
	wantError(t, rec, http.StatusUnauthorized, "invalid_token")

	rec = f.do(t, http.MethodPost, "/tokens/validate", map[string]string{"token": "not.a.jwt"}, nil)
	wantError(t, rec, http.StatusUnauthorized, "invalid_token")
}

func TestValidateEmptyToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/tokens/validate", map[string]string{"token": ""}, nil)
	wantError(t, rec, http.StatusBadRequest, "missing_token")
}

func TestListUsersIsUnguarded(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/organizations/org1/users", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	users, ok := body["users"].([]any)
	if !ok || len(users) != 3 {
		t.Fatalf("expected 3 users, got %v", body["users"])
	}
}

func TestGetUserWrongOrganization(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/organizations/other-org/users/u1", nil, nil)
	wantError(t, rec, http.StatusNotFound, "user_not_found")
}

func TestCreateUserRequiresCreatePermission(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/organizations/org1/users", map[string]any{
		"user_name":         "New Person",
		"email":             "new@example.com",
		"organization_name": "Acme",
		"roles":             []string{"Reader"},
	}, asReader())
	wantError(t, rec, http.StatusForbidden, "insufficient_permissions")
	if f.provider.createCalls.Load() != 0 {
		t.Fatalf("provider must not be touched on denial")
	}
}

func TestCreateUserOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/organizations/org1/users", map[string]any{
		"user_name":         "New Person",
		"email":             "new@example.com",
		"organization_name": "Acme",
		"roles":             []string{"Reader", "Writer"},
	}, asAdmin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["temporary_password"] != "Temp-Pass-1" {
		t.Fatalf("temporary password missing: %v", body)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["organization_id"] != "org1" {
		t.Fatalf("unexpected user payload %v", body["user"])
	}
}

func TestUpdateUserRequiresUpdatePermission(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/organizations/org1/users/u1", map[string]any{
		"user_name": "Renamed",
	}, asReader())
	wantError(t, rec, http.StatusForbidden, "insufficient_permissions")
	if f.store.users["u1"].Name != "Walt Writer" {
		t.Fatalf("record mutated on denial")
	}
}

func TestUpdateUserOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/organizations/org1/users/u1", map[string]any{
		"user_name": "Walter Writer",
	}, asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.store.users["u1"].Name != "Walter Writer" {
		t.Fatalf("update not persisted: %+v", f.store.users["u1"])
	}
}

func TestDeleteUserDenialLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/organizations/org1/users/u1", nil, asReader())
	wantError(t, rec, http.StatusForbidden, "insufficient_permissions")
	if f.provider.deleteCalls.Load() != 0 {
		t.Fatalf("provider touched on denial")
	}
	if _, ok := f.store.users["u1"]; !ok {
		t.Fatalf("store record removed on denial")
	}
}

func TestDeleteUserOK(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/organizations/org1/users/u1", nil, asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.provider.deleteCalls.Load() != 1 {
		t.Fatalf("provider account not removed")
	}
	if _, ok := f.store.users["u1"]; ok {
		t.Fatalf("store record not removed")
	}
}

func TestDeleteUserMissingIdentity(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/organizations/org1/users/u1", nil, nil)
	wantError(t, rec, http.StatusBadRequest, "missing_identity")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nope", nil, nil)
	wantError(t, rec, http.StatusNotFound, "user_not_found")

	rec = f.do(t, http.MethodGet, "/organizations/org1/teams", nil, nil)
	wantError(t, rec, http.StatusNotFound, "user_not_found")
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"test"`) {
		t.Fatalf("version missing from %s", rec.Body.String())
	}
}

func TestReadyWithoutDB(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/readyz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
