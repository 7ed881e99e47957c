// Package authn verifies bearer tokens issued by the facility's auth
// service and extracts the acting staff member. Token issuance, sessions
// and refresh live in the auth service, not here.
package authn

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/resicare/resicare-backend/pkg/actor"
	"github.com/resicare/resicare-backend/pkg/config"
	"github.com/resicare/resicare-backend/pkg/errors"
)

// Claims represents the JWT claims this service understands
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Verifier validates access tokens
type Verifier struct {
	config *config.JWTConfig
}

// NewVerifier creates a new token verifier
func NewVerifier(cfg *config.JWTConfig) *Verifier {
	return &Verifier{config: cfg}
}

// Verify parses and validates an access token and returns the actor it
// identifies.
func (v *Verifier) Verify(tokenString string) (*actor.Actor, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(v.config.Secret), nil
	}, jwt.WithIssuer(v.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	if !token.Valid || claims.UserID == "" {
		return nil, errors.TokenInvalid()
	}

	return &actor.Actor{
		ID:   claims.UserID,
		Name: claims.Name,
		Role: claims.Role,
	}, nil
}
