// Package auth extracts the acting principal from HS256 bearer tokens.
// Identity management lives outside this service; tokens arrive already
// minted and only need verifying.
package auth

import (
	"time"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the principal's id and roles.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// GenerateToken mints a signed token for a principal. Used by local tooling
// and tests; production tokens come from the external identity service.
func GenerateToken(p models.Principal, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: p.ID,
		Roles:  p.Roles,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// PrincipalFromToken verifies tokenString and returns the principal it
// asserts. Invalid, expired or foreign-key tokens yield ErrInvalidToken.
func PrincipalFromToken(tokenString string, secretKey []byte) (models.Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return models.Principal{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return models.Principal{}, common.ErrInvalidToken
	}

	return models.Principal{ID: claims.UserID, Roles: claims.Roles}, nil
}
