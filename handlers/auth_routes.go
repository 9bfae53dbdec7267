package handlers

import (
	"net/url"

	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(api fiber.Router, users *services.UserService, frontendURL string, auth fiber.Handler) {
	api.Post("/register", func(c *fiber.Ctx) error {
		var req services.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		user, err := users.Register(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "registration successful, check your email to verify your account",
			"user": fiber.Map{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
		})
	})

	api.Post("/token", func(c *fiber.Ctx) error {
		var req services.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		result, err := users.Login(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	api.Post("/token/refresh", func(c *fiber.Ctx) error {
		var req struct {
			Refresh string `json:"refresh"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		if req.Refresh == "" {
			return respondError(c, services.NewFieldValidationError("invalid request", map[string]string{"refresh": "this field is required"}))
		}
		access, err := users.Refresh(c.UserContext(), req.Refresh)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"access": access})
	})

	api.Post("/logout", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		if err := users.Logout(c.UserContext(), userID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "logged out"})
	})

	api.Get("/verify-email/:token", func(c *fiber.Ctx) error {
		status, err := users.VerifyEmail(c.UserContext(), c.Params("token"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Redirect(frontendURL+"/verify-email?status="+url.QueryEscape(string(status)), fiber.StatusFound)
	})

	api.Get("/user/is-staff", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		staff, err := users.IsStaff(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"is_staff": staff})
	})

	api.Get("/user/profile", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		profile, err := users.Profile(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	api.Patch("/user/profile", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		var req services.ProfileUpdate
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		profile, err := users.UpdateProfile(c.UserContext(), userID, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	api.Put("/user/avatar", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		var req struct {
			AvatarID uint `json:"avatar_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
		if req.AvatarID == 0 {
			return respondError(c, services.NewFieldValidationError("invalid request", map[string]string{"avatar_id": "this field is required"}))
		}
		profile, err := users.SelectAvatar(c.UserContext(), userID, req.AvatarID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	api.Get("/user/badges", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		owned, err := users.Badges(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(owned)
	})

	api.Get("/user/avatars", auth, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		unlocked, err := users.Avatars(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(unlocked)
	})
}
