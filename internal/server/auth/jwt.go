// Package auth issues and verifies the HS256 access tokens and carries the
// resolved entry owner through request contexts.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the standard claims plus the subject owner. Guest is set for
// tokens minted without an account; UserID then carries the guest owner id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Guest  bool   `json:"guest,omitempty"`
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return generate(Claims{UserID: userID}, secretKey, validityDuration)
}

// GenerateGuestToken mints a token for an account-less owner.
func GenerateGuestToken(ownerID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return generate(Claims{UserID: ownerID, Guest: true}, secretKey, validityDuration)
}

func generate(claims Claims, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies the signature and expiry of tokenString.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

type ownerKey struct{}

// Owner identifies whose entries a request may touch.
type Owner struct {
	ID    string
	Guest bool
}

func WithOwner(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, o)
}

// OwnerFromContext returns the owner stored by WithOwner, or
// common.ErrorUnauthorized if the request was never authenticated.
func OwnerFromContext(ctx context.Context) (Owner, error) {
	o, ok := ctx.Value(ownerKey{}).(Owner)
	if !ok || o.ID == "" {
		return Owner{}, common.ErrorUnauthorized
	}
	return o, nil
}
