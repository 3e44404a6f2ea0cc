package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GenerateWebhookSecret returns a random token of length characters usable
// as a webhook secret. Telegram accepts only A-Z, a-z, 0-9, "_" and "-",
// which is the default nanoid alphabet.
func GenerateWebhookSecret(length int) (string, error) {
	return gonanoid.New(length)
}
