package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
)

func protected(t *testing.T, issuer *auth.Issuer, roles ...auth.Role) (http.Handler, *auth.Principal) {
	t.Helper()
	var seen auth.Principal
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	if len(roles) > 0 {
		h = RequireRole(roles...)(h)
	}
	return RequireAuth(issuer)(h), &seen
}

func TestRequireAuthMissingHeader(t *testing.T) {
	h, _ := protected(t, auth.NewIssuer("secret", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Not authenticated."}`, rec.Body.String())
}

func TestRequireAuthWrongSecret(t *testing.T) {
	h, _ := protected(t, auth.NewIssuer("secret", time.Hour))
	token, err := auth.NewIssuer("other", time.Hour).Issue(auth.Principal{UserID: 1, Role: auth.RoleStudent})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthValidToken(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	h, seen := protected(t, issuer)
	token, err := issuer.Issue(auth.Principal{UserID: 7, Role: auth.RoleNurse, Name: "Nurse Joy"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), seen.UserID)
	assert.Equal(t, auth.RoleNurse, seen.Role)
}

func TestRequireRole(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	h, _ := protected(t, issuer, auth.RoleAdmin, auth.RoleNurse)

	for role, want := range map[auth.Role]int{
		auth.RoleAdmin:   http.StatusOK,
		auth.RoleNurse:   http.StatusOK,
		auth.RoleDoctor:  http.StatusForbidden,
		auth.RoleStudent: http.StatusForbidden,
	} {
		token, err := issuer.Issue(auth.Principal{UserID: 1, Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPut, "/api/appointments/1/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %s", role)
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	h := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
