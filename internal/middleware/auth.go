package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"messenger-api/internal/auth"
)

const claimsKey = "claims"

// JWTAuth verifies the Bearer token on incoming requests and stores the
// parsed claims in the request locals under "claims".
func JWTAuth(manager *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
		}
		claims, err := manager.VerifyToken(parts[1])
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// ClaimsFrom extracts the authenticated claims set by JWTAuth. The second
// return is false on unauthenticated requests.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*auth.Claims)
	return claims, ok
}
