package handlers

import (
	"encoding/json"
	"mime/multipart"
	"strings"

	"slangmaster/models"
	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// formImage returns the optional "image" file of a multipart request.
func formImage(c *fiber.Ctx) *multipart.FileHeader {
	file, err := c.FormFile("image")
	if err != nil || file.Size == 0 {
		return nil
	}
	return file
}

func parseBadgeInput(c *fiber.Ctx) (services.BadgeInput, *multipart.FileHeader, error) {
	var in services.BadgeInput
	if !isMultipart(c) {
		err := c.BodyParser(&in)
		return in, nil, err
	}
	in = services.BadgeInput{
		Title:                c.FormValue("title"),
		Description:          c.FormValue("description"),
		ImageURL:             c.FormValue("image_url"),
		Category:             models.BadgeCategory(strings.ToUpper(c.FormValue("category"))),
		ConditionDescription: c.FormValue("condition_description"),
		UnlockConditionData:  json.RawMessage(c.FormValue("unlock_condition_data")),
		RewardDescription:    c.FormValue("reward_description"),
		RewardData:           json.RawMessage(c.FormValue("reward_data")),
	}
	return in, formImage(c), nil
}

func parseAvatarInput(c *fiber.Ctx) (services.AvatarInput, *multipart.FileHeader, error) {
	var in services.AvatarInput
	if !isMultipart(c) {
		err := c.BodyParser(&in)
		return in, nil, err
	}
	in = services.AvatarInput{
		Name:      c.FormValue("name"),
		ImageURL:  c.FormValue("image_url"),
		IsDefault: c.FormValue("is_default") == "true" || c.FormValue("is_default") == "1",
	}
	if desc := c.FormValue("unlock_condition_description"); desc != "" {
		in.UnlockConditionDescription = &desc
	}
	return in, formImage(c), nil
}

func SetupCatalogRoutes(api fiber.Router, catalog *services.CatalogService, auth, staff fiber.Handler) {
	api.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := catalog.ListBadges(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badges)
	})

	api.Get("/badges/:id<int>", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		badge, err := catalog.GetBadge(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badge)
	})

	api.Post("/badges", auth, staff, func(c *fiber.Ctx) error {
		in, image, err := parseBadgeInput(c)
		if err != nil {
			return invalidBody(c, err)
		}
		badge, err := catalog.CreateBadge(c.UserContext(), in, image)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	updateBadge := func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		in, image, err := parseBadgeInput(c)
		if err != nil {
			return invalidBody(c, err)
		}
		badge, err := catalog.UpdateBadge(c.UserContext(), id, in, image)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badge)
	}
	api.Put("/badges/:id<int>", auth, staff, updateBadge)
	api.Patch("/badges/:id<int>", auth, staff, updateBadge)

	api.Delete("/badges/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		if err := catalog.DeleteBadge(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/avatars", func(c *fiber.Ctx) error {
		avatars, err := catalog.ListAvatars(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(avatars)
	})

	api.Get("/avatars/:id<int>", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		avatar, err := catalog.GetAvatar(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(avatar)
	})

	api.Post("/avatars", auth, staff, func(c *fiber.Ctx) error {
		in, image, err := parseAvatarInput(c)
		if err != nil {
			return invalidBody(c, err)
		}
		avatar, err := catalog.CreateAvatar(c.UserContext(), in, image)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(avatar)
	})

	updateAvatar := func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		in, image, err := parseAvatarInput(c)
		if err != nil {
			return invalidBody(c, err)
		}
		avatar, err := catalog.UpdateAvatar(c.UserContext(), id, in, image)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(avatar)
	}
	api.Put("/avatars/:id<int>", auth, staff, updateAvatar)
	api.Patch("/avatars/:id<int>", auth, staff, updateAvatar)

	api.Delete("/avatars/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		if err := catalog.DeleteAvatar(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
