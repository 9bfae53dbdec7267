package handlers

import (
	"strings"

	"slangmaster/models"
	"slangmaster/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWordRoutes(api fiber.Router, words *services.WordService, auth, staff fiber.Handler) {
	api.Get("/words", func(c *fiber.Ctx) error {
		page, err := words.List(c.UserContext(), services.WordListQuery{
			Page:     c.QueryInt("page", 1),
			Limit:    c.QueryInt("limit", services.DefaultWordPageSize),
			Search:   c.Query("search"),
			WordType: models.WordType(strings.ToUpper(c.Query("word_type"))),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(page)
	})

	api.Get("/words/random", func(c *fiber.Ctx) error {
		word, err := words.Random(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(word)
	})

	api.Get("/words/:id<int>", func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		word, err := words.Get(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(word)
	})

	api.Post("/words", auth, staff, func(c *fiber.Ctx) error {
		var in services.WordInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c, err)
		}
		word, err := words.Create(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(word)
	})

	update := func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		var in services.WordInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c, err)
		}
		word, err := words.Update(c.UserContext(), id, in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(word)
	}
	api.Put("/words/:id<int>", auth, staff, update)
	api.Patch("/words/:id<int>", auth, staff, update)

	api.Delete("/words/:id<int>", auth, staff, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		if err := words.Delete(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/game/quiz-words", auth, func(c *fiber.Ctx) error {
		round, err := words.QuizWords(c.UserContext(),
			c.QueryInt("limit", services.DefaultQuizWords),
			models.WordType(strings.ToUpper(c.Query("word_type"))))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(round)
	})

	api.Get("/game/quiz-question/:id<int>", auth, func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		question, err := words.QuizQuestion(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(question)
	})
}
