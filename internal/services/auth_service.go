package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner mints an admin session token.
type TokenSigner func(role string, ttl time.Duration) (string, error)

// AuthService guards the admin surface with a single operator
// password. There are no user accounts; the original system is a
// one-admin tool.
type AuthService struct {
	passHash  []byte
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token string `json:"token"`
}

func NewAuthService(passHash []byte, signer TokenSigner) *AuthService {
	return &AuthService{passHash: passHash, signToken: signer, tokenTTL: 12 * time.Hour}
}

// HashPassword derives the stored admin password hash.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func (s *AuthService) Login(password string) (*AuthResult, error) {
	if strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("password required")
	}
	if len(s.passHash) == 0 {
		return nil, NewUnauthorizedError("admin login not configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.passHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken("admin", s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token}, nil
}
