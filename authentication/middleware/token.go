package middleware

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

func matchToken(expected, token string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

func matchDigest(digest, token string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(token)) == nil
}
