package util

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
)

// CreateAccessToken signs an HS256 token for the API client subject. A zero
// expiry issues a token that does not expire.
func CreateAccessToken(subject string, secret string, expiry time.Duration) (accessToken string, err error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}

	claims := &JwtCustomClaims{
		Name: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}
	return t, nil
}

func ExtractIDFromToken(requestToken string, secret string) (string, error) {
	token, err := parse(requestToken, secret)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid Token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

func parse(requestToken string, secret string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(requestToken, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
}
