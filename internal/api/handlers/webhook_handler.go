package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
)

type UpdateDispatcher interface {
	Dispatch(update transfer.TelegramUpdate)
}

type WebhookHandler struct {
	d UpdateDispatcher
}

func NewWebhookHandler(d UpdateDispatcher) *WebhookHandler {
	return &WebhookHandler{d: d}
}

// ReceiveUpdate acknowledges the update at once and handles it in the
// background; Telegram redelivers anything not answered with 200.
func (h *WebhookHandler) ReceiveUpdate(c *fiber.Ctx) error {
	var update transfer.TelegramUpdate
	if err := c.BodyParser(&update); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse update",
		})
	}

	h.d.Dispatch(update)
	return c.SendStatus(fiber.StatusOK)
}
