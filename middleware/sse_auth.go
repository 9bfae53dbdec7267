package middleware

import (
	"strings"

	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SSEAuth authenticates EventSource requests, which cannot set headers, from
// the `token` query parameter. A bearer header is accepted as well.
//
//	api.Get("/user/badges/stream", middleware.SSEAuth(tokens, logger), stream.StreamUserBadgesSSE)
func SSEAuth(tokens *services.TokenService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Query("token"))
		if raw == "" {
			raw = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		return authenticate(c, tokens, logger, raw)
	}
}
