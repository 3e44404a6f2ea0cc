package middleware

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/travelpost-bot/configs"
)

// SecretTokenHeader carries the secret passed to setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookMiddleware struct {
	secret string
}

func NewWebhookMiddleware(cfg config.Config) *WebhookMiddleware {
	return &WebhookMiddleware{secret: cfg.Telegram.WebhookSecret}
}

// SecretToken rejects requests whose secret header does not match. With no
// secret configured every request is rejected.
func (m *WebhookMiddleware) SecretToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.secret == "" {
			slog.Info("webhook call while no secret is configured", "ip", c.IP())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Webhook is disabled",
			})
		}

		got := c.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.secret)) != 1 {
			slog.Info("webhook call with bad secret token", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid secret token",
			})
		}
		return c.Next()
	}
}
