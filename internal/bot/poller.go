package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/service"
)

const pollRetryDelay = 3 * time.Second

// Poll long-polls getUpdates and dispatches every update until ctx is done.
// It is used when no webhook URL is configured.
func (b *Bot) Poll(ctx context.Context, tg service.TelegramService) {
	var offset int64
	for {
		updates, err := tg.GetUpdates(ctx, offset)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("getUpdates failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.Dispatch(u)
		}
	}
}
