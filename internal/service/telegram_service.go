package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
)

const (
	parseModeMarkdown = "Markdown"
	maxCaptionRunes   = 1024
	maxMessageRunes   = 4096
	pollTimeoutSec    = 30
)

// Photo is either a reference Telegram can fetch (URL or file_id) or raw bytes.
type Photo struct {
	Ref   string
	Bytes []byte
}

type TelegramService interface {
	SendMessage(ctx context.Context, chatID, text string) (*transfer.TelegramMessage, error)
	SendPhoto(ctx context.Context, chatID string, photo Photo, caption string) (*transfer.TelegramMessage, error)
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
	GetUpdates(ctx context.Context, offset int64) ([]transfer.TelegramUpdate, error)
}

// TelegramError is a Bot API response with ok=false.
type TelegramError struct {
	Method      string
	Code        int
	Description string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.Code, e.Description)
}

func isBadMarkup(err error) bool {
	var tgErr *TelegramError
	if !errors.As(err, &tgErr) {
		return false
	}
	return tgErr.Code == 400 && strings.Contains(strings.ToLower(tgErr.Description), "parse entities")
}

type telegramService struct {
	client *resty.Client
}

func NewTelegramService(cfg config.Config) TelegramService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Telegram.APIBaseURL, "/") + "/bot" + cfg.Telegram.Token).
		SetTimeout((pollTimeoutSec + 30) * time.Second)

	return &telegramService{client: client}
}

func (s *telegramService) call(ctx context.Context, method string, req *resty.Request, result interface{}) error {
	var out transfer.TelegramResponse
	resp, err := req.SetContext(ctx).SetResult(&out).SetError(&out).Post("/" + method)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return &TelegramError{Method: method, Code: code, Description: out.Description}
	}
	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("failed to decode telegram %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends Markdown text and retries as plain text when Telegram
// cannot parse the markup. Long texts are split into several messages; the
// first one is returned.
func (s *telegramService) SendMessage(ctx context.Context, chatID, text string) (*transfer.TelegramMessage, error) {
	var first *transfer.TelegramMessage
	for _, chunk := range splitRunes(text, maxMessageRunes) {
		var msg transfer.TelegramMessage
		body := transfer.SendMessageRequest{ChatID: chatID, Text: chunk, ParseMode: parseModeMarkdown}
		err := s.call(ctx, "sendMessage", s.client.R().SetBody(body), &msg)

		if isBadMarkup(err) {
			slog.Info("markdown rejected, resending as plain text", "chat_id", chatID)
			body.ParseMode = ""
			err = s.call(ctx, "sendMessage", s.client.R().SetBody(body), &msg)
		}
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = &msg
		}
	}
	return first, nil
}

func (s *telegramService) SendPhoto(ctx context.Context, chatID string, photo Photo, caption string) (*transfer.TelegramMessage, error) {
	caption = truncateRunes(caption, maxCaptionRunes)

	var msg transfer.TelegramMessage
	send := func(parseMode string) error {
		if len(photo.Bytes) == 0 {
			body := transfer.SendPhotoRequest{ChatID: chatID, Photo: photo.Ref, Caption: caption, ParseMode: parseMode}
			return s.call(ctx, "sendPhoto", s.client.R().SetBody(body), &msg)
		}

		form := map[string]string{"chat_id": chatID, "caption": caption}
		if parseMode != "" {
			form["parse_mode"] = parseMode
		}
		req := s.client.R().
			SetFileReader("photo", "image."+photoExtension(photo.Bytes), bytes.NewReader(photo.Bytes)).
			SetFormData(form)
		return s.call(ctx, "sendPhoto", req, &msg)
	}

	err := send(parseModeMarkdown)
	if isBadMarkup(err) {
		err = send("")
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *telegramService) SetWebhook(ctx context.Context, url, secret string) error {
	body := transfer.SetWebhookRequest{URL: url, SecretToken: secret, AllowedUpdates: []string{"message"}}
	return s.call(ctx, "setWebhook", s.client.R().SetBody(body), nil)
}

func (s *telegramService) DeleteWebhook(ctx context.Context) error {
	return s.call(ctx, "deleteWebhook", s.client.R().SetBody(map[string]bool{"drop_pending_updates": false}), nil)
}

func (s *telegramService) GetUpdates(ctx context.Context, offset int64) ([]transfer.TelegramUpdate, error) {
	body := transfer.GetUpdatesRequest{Offset: offset, Timeout: pollTimeoutSec, AllowedUpdates: []string{"message"}}

	var updates []transfer.TelegramUpdate
	if err := s.call(ctx, "getUpdates", s.client.R().SetBody(body), &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// LargestPhotoID returns the file_id of the biggest size Telegram stored.
func LargestPhotoID(msg *transfer.TelegramMessage) string {
	if msg == nil || len(msg.Photo) == 0 {
		return ""
	}
	best := msg.Photo[0]
	for _, p := range msg.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best.FileID
}

// FormatChatID renders a numeric chat id the way it is stored in the sheet.
func FormatChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func photoExtension(b []byte) string {
	kind, err := filetype.Match(b)
	if err != nil || kind == types.Unknown {
		return "jpg"
	}
	return kind.Extension
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func splitRunes(s string, max int) []string {
	r := []rune(s)
	if len(r) <= max {
		return []string{s}
	}
	var chunks []string
	for len(r) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(r[:cut]))
		r = r[cut:]
	}
	if len(r) > 0 {
		chunks = append(chunks, string(r))
	}
	return chunks
}
