package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	ProviderGuest    = "guest"
	ProviderFirebase = "firebase"
	ProviderAdmin    = "admin"

	issuer = "digital-storefront"
)

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token operations
type JWTService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, tokenExpiry time.Duration) *JWTService {
	return &JWTService{
		secretKey:   []byte(secretKey),
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

// IssueGuestToken creates an anonymous customer identity. The cart and payment
// session are keyed by its user id.
func (s *JWTService) IssueGuestToken() (string, *Claims, time.Time, error) {
	claims := &Claims{
		UserID:   "guest-" + uuid.New().String(),
		Role:     RoleCustomer,
		Provider: ProviderGuest,
	}
	token, expiresAt, err := s.Sign(claims)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return token, claims, expiresAt, nil
}

// GenerateAccessToken creates a new access token
func (s *JWTService) GenerateAccessToken(userID, email, role string) (string, time.Time, error) {
	provider := ProviderGuest
	if role == RoleAdmin {
		provider = ProviderAdmin
	}
	return s.Sign(&Claims{UserID: userID, Email: email, Role: role, Provider: provider})
}

// Sign fills the registered claims and signs with HS256.
func (s *JWTService) Sign(claims *Claims) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenExpiry)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenExpiry returns the token lifetime
func (s *JWTService) TokenExpiry() time.Duration {
	return s.tokenExpiry
}
