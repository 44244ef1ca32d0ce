package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/digital-storefront/internal/auth"
)

const testSecret = "test-secret-key-for-middleware-tests"

func newTestAuthenticator() (*auth.Authenticator, *auth.JWTService) {
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute)
	return auth.NewAuthenticator(jwtService, nil), jwtService
}

func captureClaims(captured **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetUserFromContext(r.Context()); ok {
			*captured = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

// ============================================
// AuthMiddleware Tests
// ============================================

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	authenticator, jwtService := newTestAuthenticator()
	token, issued, _, err := jwtService.IssueGuestToken()
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, issued.UserID, captured.UserID)
	assert.Equal(t, auth.RoleCustomer, captured.Role)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	authenticator, jwtService := newTestAuthenticator()
	token, _, err := jwtService.GenerateAccessToken("admin", "ops@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "admin", captured.UserID)
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	authenticator, _ := newTestAuthenticator()
	var captured *auth.Claims

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec))
	assert.Nil(t, captured)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	authenticator, _ := newTestAuthenticator()
	var captured *auth.Claims

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeError(t, rec))
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	authenticator, _ := newTestAuthenticator()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: "guest-1",
		Role:   auth.RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "digital-storefront",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	token, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token expired", decodeError(t, rec))
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	authenticator, jwtService := newTestAuthenticator()
	cookieToken, _, err := jwtService.GenerateAccessToken("cookie-user", "", auth.RoleCustomer)
	require.NoError(t, err)
	headerToken, _, err := jwtService.GenerateAccessToken("header-user", "", auth.RoleCustomer)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()
	AuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

	require.NotNil(t, captured)
	assert.Equal(t, "cookie-user", captured.UserID)
}

// ============================================
// OptionalAuthMiddleware Tests
// ============================================

func TestOptionalAuthMiddleware(t *testing.T) {
	authenticator, jwtService := newTestAuthenticator()
	token, _, err := jwtService.GenerateAccessToken("guest-1", "", auth.RoleCustomer)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantUserID string
	}{
		{name: "valid token", header: "Bearer " + token, wantUserID: "guest-1"},
		{name: "no token"},
		{name: "invalid token", header: "Bearer garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *auth.Claims
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			OptionalAuthMiddleware(authenticator)(captureClaims(&captured)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.wantUserID == "" {
				assert.Nil(t, captured)
				return
			}
			require.NotNil(t, captured)
			assert.Equal(t, tt.wantUserID, captured.UserID)
		})
	}
}

// ============================================
// RequireRole Tests
// ============================================

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *auth.Claims
		roles  []string
		want   int
	}{
		{name: "has role", claims: &auth.Claims{UserID: "a", Role: auth.RoleAdmin}, roles: []string{auth.RoleAdmin}, want: http.StatusOK},
		{name: "alternate role", claims: &auth.Claims{UserID: "c", Role: auth.RoleCustomer}, roles: []string{auth.RoleAdmin, auth.RoleCustomer}, want: http.StatusOK},
		{name: "missing role", claims: &auth.Claims{UserID: "c", Role: auth.RoleCustomer}, roles: []string{auth.RoleAdmin}, want: http.StatusForbidden},
		{name: "no claims", roles: []string{auth.RoleAdmin}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			RequireRole(tt.roles...)(handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// ============================================
// Context Helper Tests
// ============================================

func TestGetUserID(t *testing.T) {
	assert.Equal(t, "", GetUserID(context.Background()))

	ctx := WithClaims(context.Background(), &auth.Claims{UserID: "guest-1"})
	assert.Equal(t, "guest-1", GetUserID(ctx))

	claims, ok := GetUserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "guest-1", claims.UserID)
}
