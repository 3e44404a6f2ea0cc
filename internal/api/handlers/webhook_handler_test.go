package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/api/middleware"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []transfer.TelegramUpdate
}

func (r *recordingDispatcher) Dispatch(update transfer.TelegramUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func newTestApp(secret string) (*fiber.App, *recordingDispatcher) {
	cfg := config.Config{Telegram: config.Telegram{WebhookSecret: secret}}
	d := &recordingDispatcher{}

	app := fiber.New()
	app.Get("/healthz", NewHealthHandler("memory").Health)
	app.Post("/telegram/webhook", middleware.NewWebhookMiddleware(cfg).SecretToken(), NewWebhookHandler(d).ReceiveUpdate)
	return app, d
}

const updateBody = `{"update_id":42,"message":{"message_id":1,"from":{"id":7},"chat":{"id":100,"type":"private"},"text":"/help"}}`

func webhookRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middleware.SecretTokenHeader, secret)
	}
	return req
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	app, d := newTestApp("s3cret")

	resp, err := app.Test(webhookRequest(updateBody, "s3cret"))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, d.updates, 1)
	assert.Equal(t, int64(42), d.updates[0].UpdateID)
	assert.Equal(t, "/help", d.updates[0].Message.Text)
	assert.Equal(t, int64(7), d.updates[0].Message.From.ID)
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	app, d := newTestApp("s3cret")

	for _, secret := range []string{"", "wrong"} {
		resp, err := app.Test(webhookRequest(updateBody, secret))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
	assert.Empty(t, d.updates)
}

func TestWebhook_NoSecretConfiguredRejectsEverything(t *testing.T) {
	app, d := newTestApp("")

	for _, secret := range []string{"", "anything"} {
		resp, err := app.Test(webhookRequest(updateBody, secret))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}
	assert.Empty(t, d.updates)
}

func TestWebhook_BadBody(t *testing.T) {
	app, d := newTestApp("s3cret")

	resp, err := app.Test(webhookRequest("{not json", "s3cret"))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, d.updates)
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp("")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "memory", out["store"])
}
