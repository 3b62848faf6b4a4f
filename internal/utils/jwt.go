package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the actor identity and role inside access tokens.
type Claims struct {
	ActorID string `json:"actorId"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

var jwtSecret []byte

// SetJWTSecret configures the signing secret. Called once at startup.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateJWT issues a signed token for the given actor.
func GenerateJWT(actorID, role string, expiry time.Duration) (string, error) {
	claims := &Claims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateJWT parses and validates a token, returning its claims.
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
