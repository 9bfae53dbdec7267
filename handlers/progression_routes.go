package handlers

import (
	"strings"

	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

const idempotencyHeader = "Idempotency-Key"

func SetupProgressionRoutes(api fiber.Router, progression *services.ProgressionService, stream *services.BadgeStreamService, auth, sseAuth fiber.Handler) {
	api.Post("/game/submit", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		var req services.GameResultRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = strings.TrimSpace(c.Get(idempotencyHeader))
		}
		resp, err := progression.SubmitGameResult(c.UserContext(), userID, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	})

	api.Post("/game/action", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		titles, err := progression.ProcessGameAction(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":         "action processed",
			"unlocked_badges": titles,
		})
	})

	api.Get("/game/history", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		entries, err := progression.History(c.UserContext(), userID, c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	api.Get("/user-stats/me", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		view, err := progression.MyStats(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	api.Get("/user/badges/stream", sseAuth, stream.StreamUserBadgesSSE)
}
