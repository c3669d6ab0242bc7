// internal/auth/auth.go
package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
)

const issuer = "kaika-demo"

// TokenConfig holds the configuration for token generation
type TokenConfig struct {
	Secret     []byte
	Expiration time.Duration
}

// SessionClaims bind a bearer token to one session.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies session tokens.
type TokenService struct {
	config TokenConfig
	clock  clock.Clock
}

func NewTokenService(config TokenConfig, clk clock.Clock) (*TokenService, error) {
	if len(config.Secret) == 0 {
		return nil, apperrors.NewValidationError("secret key is required", nil)
	}
	if config.Expiration <= 0 {
		config.Expiration = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	return &TokenService{config: config, clock: clk}, nil
}

// Issue signs a token for sessionID.
func (s *TokenService) Issue(sessionID string) (string, time.Time, error) {
	now := s.clock.Now()
	expires := now.Add(s.config.Expiration)
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", time.Time{}, apperrors.NewProcessingError("sign token", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (s *TokenService) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid token", err)
	}
	if !claims.VerifyIssuer(issuer, true) {
		return nil, apperrors.NewUnauthorizedError("invalid token issuer", nil)
	}
	if !claims.VerifyExpiresAt(s.clock.Now(), true) {
		return nil, apperrors.NewUnauthorizedError("token has expired", nil)
	}
	if claims.SessionID == "" {
		return nil, apperrors.NewUnauthorizedError("token carries no session", nil)
	}
	return claims, nil
}

// Authorize verifies tokenString and requires it to belong to sessionID.
func (s *TokenService) Authorize(tokenString, sessionID string) (*SessionClaims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != sessionID {
		return nil, apperrors.NewForbiddenError(fmt.Sprintf("token is not valid for session %s", sessionID), nil)
	}
	return claims, nil
}

// GenerateSecureKey generates a secure random key for token signing
func GenerateSecureKey(length int) ([]byte, error) {
	if length <= 0 {
		length = 32 // Default to 256 bits
	}

	key := make([]byte, length)
	_, err := rand.Read(key)
	if err != nil {
		return nil, err
	}

	return key, nil
}
