// Package auth issues and verifies the HS256 session tokens carried in the
// Authorization header.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wassertech/fieldsync/internal/common"
)

// Claims carries the user's identity and scope. Role and ClientID drive the
// pull filter and the push permission checks, so they live in the token
// rather than being re-read per request.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Role     string `json:"role"`
	ClientID string `json:"cid,omitempty"`
}

// GenerateToken signs a session token for the given user.
func GenerateToken(userID, role, clientID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:   userID,
		Role:     role,
		ClientID: clientID,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry and returns the claims.
// Any failure maps to common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
