// Package auth is the identity provider: password hashing, session
// tokens, and the middleware resolving a request to a user identity.
package auth

import (
	"time"

	"chat-hub/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload stored inside a session JWT.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates session tokens. The secret comes from
// configuration; it is never compiled in.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Generate creates a signed HS256 token for the user.
func (t *TokenManager) Generate(user domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   int64(user.ID),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-hub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses the token, checks signature and expiry, and returns
// the identity it carries.
func (t *TokenManager) Validate(tokenString string) (domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return t.secret, nil
		})
	if err != nil {
		return domain.User{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.User{}, jwt.ErrSignatureInvalid
	}
	return domain.User{
		ID:       domain.UserID(claims.UserID),
		Username: claims.Username,
	}, nil
}
