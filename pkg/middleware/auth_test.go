package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
)

func fakeValidator(token string) (*Claims, error) {
	switch token {
	case "admin-token":
		return &Claims{UserID: "u-admin", Email: "admin@shop.test", Role: "admin"}, nil
	case "user-token":
		return &Claims{UserID: "u-1", Email: "ana@shop.test", Name: "Ana", Role: "user"}, nil
	default:
		return nil, errors.New("bad token")
	}
}

func authCfg() AuthConfig {
	return AuthConfig{Validate: fakeValidator, CookieName: "user-token"}
}

func echoClaims(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		if c == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		assert.Equal(t, c.UserID, logger.UserIDFromContext(r.Context()))
		_, _ = w.Write([]byte(c.UserID + "/" + RoleFromContext(r.Context())))
	})
}

func TestAuth_BearerHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()

	Auth(authCfg())(echoClaims(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1/user", rec.Body.String())
}

func TestAuth_CookieFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "user-token", Value: "admin-token"})
	rec := httptest.NewRecorder()

	Auth(authCfg())(echoClaims(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-admin/admin", rec.Body.String())
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing", "", "missing credentials"},
		{"wrong scheme", "Basic abc", "invalid authorization header format"},
		{"empty bearer", "Bearer ", "invalid authorization header format"},
		{"invalid token", "Bearer forged", "invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Auth(authCfg())(echoClaims(t)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	anon := httptest.NewRecorder()
	OptionalAuth(authCfg())(echoClaims(t)).ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, anon.Code)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	OptionalAuth(authCfg())(echoClaims(t)).ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	good := httptest.NewRequest(http.MethodGet, "/", nil)
	good.Header.Set("Authorization", "Bearer user-token")
	rec = httptest.NewRecorder()
	OptionalAuth(authCfg())(echoClaims(t)).ServeHTTP(rec, good)
	assert.Equal(t, "u-1/user", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	chain := func() http.Handler {
		return Auth(authCfg())(RequireRole("admin")(echoClaims(t)))
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	assert.Nil(t, ClaimsFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))
	assert.Empty(t, RoleFromContext(ctx))
}
