package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shambasmart/marketplace/internal/auth"
	"github.com/shambasmart/marketplace/pkg/model"
)

const userLocalKey = "currentUser"

// RequireAuth extracts and verifies the bearer token, loading the user into
// the request locals for downstream handlers.
func RequireAuth(authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}
		token := strings.TrimPrefix(header, "Bearer ")

		user, err := authSvc.Authenticate(c.Context(), token)
		if err != nil {
			return writeError(c, err)
		}

		c.Locals(userLocalKey, user)
		return c.Next()
	}
}

// currentUser returns the authenticated user placed by RequireAuth.
func currentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(userLocalKey).(*model.User)
	return u
}
