package handlers

import (
	"errors"
	"strconv"

	"slangmaster/middleware"
	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

// respondError writes a ServiceError with its status. Anything else is a
// bare 500 so internals never leak.
func respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	body := fiber.Map{"error": svcErr.Message}
	if svcErr.Code != "" {
		body["code"] = svcErr.Code
	}
	if len(svcErr.Fields) > 0 {
		body["fields"] = svcErr.Fields
	}
	status := svcErr.GetStatusCode()
	if svcErr.Cause != nil && status < fiber.StatusInternalServerError {
		body["cause"] = svcErr.Cause.Error()
	}
	return c.Status(status).JSON(body)
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"cause": err.Error(),
	})
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 0)
	if err != nil || id == 0 {
		return 0, services.NewValidationError("invalid "+name, err)
	}
	return uint(id), nil
}

// currentUser reads the id set by the auth middleware.
func currentUser(c *fiber.Ctx) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, services.NewUnauthorizedError("authentication required")
	}
	return id, nil
}
