package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"ai_chat/internal/config"
)

// DefaultTokenTTL is the lifetime of tokens minted by GenerateUserToken
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("token subject is not a user id")
)

// GenerateUserToken signs a token whose subject is the user's id. Identity is
// owned by the external auth collaborator; this exists for tooling and tests.
func GenerateUserToken(userID uuid.UUID, ttl time.Duration, cfg *config.Config) (string, int64, error) {
	if userID == uuid.Nil {
		return "", 0, ErrInvalidSubject
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	expirationTime := now.Add(ttl).Unix()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": expirationTime,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(cfg.JWTSecret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expirationTime, nil
}

// ValidateUserToken verifies tokenString and returns the user id it carries
func ValidateUserToken(tokenString string, cfg *config.Config) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrInvalidSubject
	}

	return userID, nil
}
