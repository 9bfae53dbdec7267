package handlers

import (
	"slangmaster/middleware"
	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Services groups what the route setup functions need.
type Services struct {
	Tokens      *services.TokenService
	Users       *services.UserService
	Words       *services.WordService
	Catalog     *services.CatalogService
	Progression *services.ProgressionService
	Admin       *services.AdminService
	BadgeStream *services.BadgeStreamService
}

// RegisterRoutes mounts every /api route on app.
func RegisterRoutes(app *fiber.App, svc Services, frontendURL string, logger *zap.Logger) {
	auth := middleware.JWTAuth(svc.Tokens, logger)
	sseAuth := middleware.SSEAuth(svc.Tokens, logger)
	staff := middleware.RequireStaff(svc.Users)

	api := app.Group("/api")
	SetupAuthRoutes(api, svc.Users, frontendURL, auth)
	SetupWordRoutes(api, svc.Words, auth, staff)
	SetupCatalogRoutes(api, svc.Catalog, auth, staff)
	SetupProgressionRoutes(api, svc.Progression, svc.BadgeStream, auth, sseAuth)
	SetupAdminRoutes(api, svc.Admin, auth, staff)
	SetupIndexRoute(app, api)
}
