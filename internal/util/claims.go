package util

import (
	"github.com/golang-jwt/jwt/v4"
)

// JwtCustomClaims identify an API client. The subject names the client.
type JwtCustomClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
