package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	started time.Time
	backend string
}

func NewHealthHandler(backend string) *HealthHandler {
	return &HealthHandler{started: time.Now(), backend: backend}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"store":  h.backend,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
