package middleware

import (
	"strings"

	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by the auth middlewares.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalIsStaff  = "is_staff"
)

// JWTAuth requires a valid access token in "Authorization: Bearer <token>".
func JWTAuth(tokens *services.TokenService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication credentials were not provided",
			})
		}
		return authenticate(c, tokens, logger, raw)
	}
}

func authenticate(c *fiber.Ctx, tokens *services.TokenService, logger *zap.Logger, raw string) error {
	claims, err := tokens.Parse(raw, services.TokenTypeAccess)
	if err != nil {
		logger.Debug("rejected token", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "token is invalid or expired",
		})
	}
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalUsername, claims.Username)
	c.Locals(LocalIsStaff, claims.IsStaff)
	return c.Next()
}

// bearerToken accepts "Bearer <token>" and tolerates a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, "bearer") {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.Contains(header, " ") {
		return ""
	}
	return header
}

// RequireStaff must run after JWTAuth. The staff flag is read from the
// database so a revoked flag takes effect before the token expires.
func RequireStaff(users *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := UserID(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		staff, err := users.IsStaff(c.UserContext(), userID)
		if err != nil || !staff {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "you do not have permission to perform this action",
			})
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok && id != 0
}
