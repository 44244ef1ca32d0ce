package auth

import (
	"context"
	"errors"
)

// Authenticator resolves a bearer token to claims. Storefront JWTs are tried first,
// then Firebase ID tokens when a verifier is configured.
type Authenticator struct {
	jwt      *JWTService
	firebase IDTokenVerifier
}

func NewAuthenticator(jwt *JWTService, firebase IDTokenVerifier) *Authenticator {
	return &Authenticator{jwt: jwt, firebase: firebase}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := a.jwt.ValidateAccessToken(token)
	if err == nil {
		return claims, nil
	}
	if a.firebase == nil || errors.Is(err, ErrExpiredToken) {
		return nil, err
	}

	fbToken, fbErr := a.firebase.VerifyIDToken(ctx, token)
	if fbErr != nil {
		return nil, ErrInvalidToken
	}
	return ClaimsFromFirebase(fbToken), nil
}
