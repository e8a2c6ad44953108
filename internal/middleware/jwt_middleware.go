package middleware

import (
	"strings"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// exposeDetail adds the validation error to the response outside production.
func AuthRequired(authService *services.AuthService, log *zap.Logger, exposeDetail bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Info("JWT validation failed", zap.String("path", c.Path()), zap.Error(err))
			body := fiber.Map{"message": "Invalid or expired token"}
			if exposeDetail {
				body["error"] = err.Error()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(body)
		}

		userID, _ := claims["user_id"].(string)
		username, _ := claims["username"].(string)
		c.Locals("user_id", userID)
		c.Locals("username", username)

		return c.Next()
	}
}
