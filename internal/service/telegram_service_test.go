package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	config "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Path        string
	ContentType string
	Body        map[string]interface{}
	Raw         string
}

// fakeBotAPI answers Bot API calls with the given handler and records requests.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeBotAPI) start(t *testing.T, reply func(call recordedCall) (int, string)) TelegramService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		call := recordedCall{Path: r.URL.Path, ContentType: r.Header.Get("Content-Type"), Raw: string(raw)}
		if strings.HasPrefix(call.ContentType, "application/json") {
			_ = json.Unmarshal(raw, &call.Body)
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		status, body := reply(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewTelegramService(config.Config{Telegram: config.Telegram{Token: "TOKEN", APIBaseURL: srv.URL}})
}

func TestSendMessage_RetriesAsPlainTextOnBadMarkup(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		if call.Body["parse_mode"] == "Markdown" {
			return 400, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity"}`
		}
		return 200, `{"ok":true,"result":{"message_id":5,"chat":{"id":100,"type":"private"}}}`
	})

	msg, err := tg.SendMessage(context.Background(), "100", "*broken")

	require.NoError(t, err)
	assert.Equal(t, int64(5), msg.MessageID)
	require.Len(t, api.calls, 2)
	assert.Equal(t, "/botTOKEN/sendMessage", api.calls[0].Path)
	assert.Nil(t, api.calls[1].Body["parse_mode"])
	assert.Equal(t, "*broken", api.calls[1].Body["text"])
}

func TestSendMessage_OtherErrorsAreReturned(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		return 403, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	})

	_, err := tg.SendMessage(context.Background(), "100", "hello")

	require.Error(t, err)
	var tgErr *TelegramError
	require.ErrorAs(t, err, &tgErr)
	assert.Equal(t, 403, tgErr.Code)
	assert.Len(t, api.calls, 1)
}

func TestSendMessage_SplitsLongText(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":1}}`
	})

	_, err := tg.SendMessage(context.Background(), "100", strings.Repeat("a", maxMessageRunes+10))

	require.NoError(t, err)
	assert.Len(t, api.calls, 2)
}

func TestSendPhoto_ByReference(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":8,"photo":[{"file_id":"a","width":10,"height":10},{"file_id":"b","width":100,"height":100}]}}`
	})

	msg, err := tg.SendPhoto(context.Background(), "@channel", Photo{Ref: "file-1"}, "caption")

	require.NoError(t, err)
	assert.Equal(t, "b", LargestPhotoID(msg))
	require.Len(t, api.calls, 1)
	assert.Equal(t, "file-1", api.calls[0].Body["photo"])
	assert.Equal(t, "Markdown", api.calls[0].Body["parse_mode"])
}

func TestSendPhoto_UploadsBytes(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		return 200, `{"ok":true,"result":{"message_id":8}}`
	})

	_, err := tg.SendPhoto(context.Background(), "100", Photo{Bytes: pngHeader}, "caption")

	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	assert.True(t, strings.HasPrefix(api.calls[0].ContentType, "multipart/form-data"))
	assert.Contains(t, api.calls[0].Raw, `filename="image.png"`)
	assert.Contains(t, api.calls[0].Raw, "caption")
}

func TestGetUpdates_DecodesResult(t *testing.T) {
	api := &fakeBotAPI{}
	tg := api.start(t, func(call recordedCall) (int, string) {
		return 200, `{"ok":true,"result":[{"update_id":11,"message":{"message_id":3,"from":{"id":7},"chat":{"id":100},"text":"/help"}}]}`
	})

	updates, err := tg.GetUpdates(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(11), updates[0].UpdateID)
	assert.Equal(t, "/help", updates[0].Message.Text)
	assert.Equal(t, float64(10), api.calls[0].Body["offset"])
}

func TestLargestPhotoID_Empty(t *testing.T) {
	assert.Equal(t, "", LargestPhotoID(nil))
	assert.Equal(t, "", LargestPhotoID(&transfer.TelegramMessage{}))
}

func TestTruncateAndSplitRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 3))
	assert.Equal(t, "ab…", truncateRunes("abcd", 3))

	chunks := splitRunes("aaaa\nbbbb", 6)
	assert.Equal(t, []string{"aaaa\n", "bbbb"}, chunks)
}
