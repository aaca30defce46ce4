package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/toast-engine/internal/audio"
)

// ReadinessChecker reports whether the notification service accepts work.
type ReadinessChecker interface {
	Ready() error
	SoundConfig() (audio.Config, bool)
}

func RegisterHealthRoutes(app fiber.Router, checker ReadinessChecker) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(checker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(checker ReadinessChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		queueErr := checker.Ready()

		queueStatus := "ok"
		if queueErr != nil {
			queueStatus = "down"
		}
		soundStatus := "disabled"
		if _, ok := checker.SoundConfig(); ok {
			soundStatus = "enabled"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if queueErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"queue": queueStatus,
				"sound": soundStatus,
			},
		})
	}
}
