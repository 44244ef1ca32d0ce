package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/api/middleware"
	"github.com/example/digital-storefront/internal/auth"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	jwtService        *auth.JWTService
	adminEmail        string
	adminPasswordHash string
	logger            *zap.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance. An empty password hash disables
// admin login.
func NewAuthHandlers(jwtService *auth.JWTService, adminEmail, adminPasswordHash string, logger *zap.Logger) *AuthHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandlers{
		jwtService:        jwtService,
		adminEmail:        adminEmail,
		adminPasswordHash: adminPasswordHash,
		logger:            logger.Named("auth"),
	}
}

// LoginRequest represents the admin login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by every login endpoint. The token is also set as a cookie.
type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Provider string `json:"provider"`
}

// GuestLogin issues an anonymous customer identity
func (h *AuthHandlers) GuestLogin(w http.ResponseWriter, r *http.Request) {
	token, claims, expiresAt, err := h.jwtService.IssueGuestToken()
	if err != nil {
		h.logger.Error("issue guest token", zap.Error(err))
		respondJSONError(w, "could not issue token", http.StatusInternalServerError)
		return
	}

	setAccessCookie(w, r, token, expiresAt)
	respondJSON(w, http.StatusCreated, AuthResponse{
		User:        userResponse(claims),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

// AdminLogin checks the configured admin credentials
func (h *AuthHandlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !strings.EqualFold(strings.TrimSpace(req.Email), h.adminEmail) {
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	token, expiresAt, err := h.jwtService.AdminLogin(h.adminEmail, req.Password, h.adminPasswordHash)
	if err != nil {
		h.logger.Warn("admin login rejected", zap.String("remote_addr", r.RemoteAddr))
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	setAccessCookie(w, r, token, expiresAt)
	respondJSON(w, http.StatusOK, AuthResponse{
		User: UserResponse{
			ID:       "admin",
			Email:    h.adminEmail,
			Role:     auth.RoleAdmin,
			Provider: auth.ProviderAdmin,
		},
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

// Me returns the authenticated identity
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(claims))
}

// Logout clears the access token cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func setAccessCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func userResponse(claims *auth.Claims) UserResponse {
	return UserResponse{
		ID:       claims.UserID,
		Email:    claims.Email,
		Name:     claims.Name,
		Role:     claims.Role,
		Provider: claims.Provider,
	}
}
