// Package auth issues and verifies the HS256 access tokens presented by
// WebSocket clients in their login command.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/domain"
)

var errEmptySecret = errors.New("jwt secret must not be empty")

// JWTService implements domain.AuthService with claims {sub, iat, exp}.
type JWTService struct {
	secret []byte
	clock  clockwork.Clock
}

func NewJWTService(secret string, clock clockwork.Clock) (*JWTService, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	return &JWTService{secret: []byte(secret), clock: clock}, nil
}

// EncodeToken issues a token for userID that expires after ttl.
func (s *JWTService) EncodeToken(userID string, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) DecodeToken(token string) (*domain.Claims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, domain.NewAuthError("decode token", fmt.Errorf("%w: %w", domain.ErrInvalidToken, err))
	}
	if claims.Subject == "" {
		return nil, domain.NewAuthError("decode token", fmt.Errorf("%w: missing subject", domain.ErrInvalidToken))
	}

	result := &domain.Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	return result, nil
}
