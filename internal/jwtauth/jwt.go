// Package jwtauth validates the access tokens minted by the account service.
// This service never issues tokens; it only verifies them and extracts the
// acting profile.
package jwtauth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	id "countersign/pkg/domain"
	dErrors "countersign/pkg/domain-errors"
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	ProfileID string `json:"profile_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the verified actor behind a request.
type Identity struct {
	ProfileID id.ProfileID
	Email     string
}

// Validator verifies HS256 tokens against the shared signing key.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the identity it
// asserts.
func (v *Validator) ValidateToken(tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	profileID, err := id.ParseProfileID(claims.ProfileID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &Identity{ProfileID: profileID, Email: claims.Email}, nil
}
