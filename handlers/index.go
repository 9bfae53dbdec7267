package handlers

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SetupIndexRoute serves GET /api with the list of mounted API routes.
// Call it after every other route is registered.
func SetupIndexRoute(app *fiber.App, api fiber.Router) {
	var routes []string
	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead || !strings.HasPrefix(r.Path, "/api/") {
			continue
		}
		routes = append(routes, r.Method+" "+r.Path)
	}
	sort.Strings(routes)
	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"routes": routes})
	})
}
