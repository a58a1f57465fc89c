package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/auth"
)

const callerLocal = "caller"

// CallerAuth resolves the caller's wallet address from the bearer token and
// stores it in the request locals. Every protected route derives the acting
// party from this value, never from the request body.
func CallerAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		address, err := auth.Verify(token, secret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		c.Locals(callerLocal, address)
		return c.Next()
	}
}

// Caller returns the authenticated wallet address, or "" when the route is
// not behind CallerAuth.
func Caller(c *fiber.Ctx) string {
	address, _ := c.Locals(callerLocal).(string)
	return address
}
