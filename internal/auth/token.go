package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/lms-auth-api/internal/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims represents the claims carried by a session token
type TokenClaims struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      user.Role `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService issues and verifies stateless session tokens.
type TokenService interface {
	CreateToken(userID uuid.UUID, role user.Role, duration time.Duration) (string, error)
	VerifyToken(token string) (*TokenClaims, error)
}

// NewTokenService builds the issuer selected by strategy ("paseto" or "jwt").
func NewTokenService(strategy string, pasetoKey, jwtSecret []byte) (TokenService, error) {
	var (
		svc TokenService
		err error
	)
	switch strategy {
	case "paseto":
		svc, err = NewPasetoService(pasetoKey)
	case "jwt":
		svc, err = NewJWTService(jwtSecret)
	default:
		return nil, fmt.Errorf("unsupported token strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}
