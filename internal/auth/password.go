package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// AdminLogin checks the admin password against the configured hash and issues an
// admin token. An empty hash disables admin login.
func (s *JWTService) AdminLogin(email, password, hash string) (string, time.Time, error) {
	if hash == "" || !CheckPassword(password, hash) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.GenerateAccessToken("admin", email, RoleAdmin)
}
