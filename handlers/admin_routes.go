package handlers

import (
	"slangmaster/middleware"
	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts the staff-only endpoints.
func SetupAdminRoutes(api fiber.Router, admin *services.AdminService, auth, staff fiber.Handler) {
	api.Get("/admin/dashboard-data", auth, staff, func(c *fiber.Ctx) error {
		username, _ := c.Locals(middleware.LocalUsername).(string)
		data, err := admin.Dashboard(c.UserContext(), username)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(data)
	})

	api.Get("/users", auth, staff, func(c *fiber.Ctx) error {
		users, err := admin.ListUsers(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(users)
	})

	api.Get("/users/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		user, err := admin.GetUser(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(user)
	})

	api.Get("/user-stats", auth, staff, func(c *fiber.Ctx) error {
		all, err := admin.ListStats(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(all)
	})

	api.Get("/user-stats/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		view, err := admin.GetStats(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	api.Patch("/user-stats/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		var patch services.StatsPatch
		if err := c.BodyParser(&patch); err != nil {
			return invalidBody(c, err)
		}
		result, err := admin.PatchStats(c.UserContext(), id, patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})
}
