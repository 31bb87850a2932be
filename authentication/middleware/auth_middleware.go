package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/leonovk/wg-rest-api/internal/util"
	"github.com/leonovk/wg-rest-api/pkg/types"
)

// AuthConfig lists the accepted credentials. Any one of them is enough.
type AuthConfig struct {
	// Token is compared verbatim with the bearer token.
	Token string
	// TokenDigest is a bcrypt hash of the bearer token.
	TokenDigest string
	// JWTSecret verifies HS256 tokens issued for API clients.
	JWTSecret string
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" header
// with 403. The caller identity is stored in Locals under "x-api-client".
func BearerAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return forbidden(c)
		}
		token := parts[1]

		switch {
		case matchToken(cfg.Token, token):
			c.Locals("x-api-client", "token")
		case matchDigest(cfg.TokenDigest, token):
			c.Locals("x-api-client", "digest")
		case cfg.JWTSecret != "":
			subject, err := util.ExtractIDFromToken(token, cfg.JWTSecret)
			if err != nil {
				return forbidden(c)
			}
			c.Locals("x-api-client", subject)
		default:
			return forbidden(c)
		}

		return c.Next()
	}
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(http.StatusForbidden).JSON(types.ErrorResponse{Error: "forbidden"})
}
