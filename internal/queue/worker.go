package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/internal/service"
)

// Register wires the task handlers into mux.
func (j *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeGeneratePost, j.HandleGeneratePostTask)
	mux.HandleFunc(TaskTypePublishPost, j.HandlePublishPostTask)
}

func (j *Queue) HandleGeneratePostTask(ctx context.Context, task *asynq.Task) error {
	var payload GeneratePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("bad %s payload: %w", TaskTypeGeneratePost, asynq.SkipRetry)
	}

	draft, err := j.ps.CreateDraft(ctx, payload.ChatID, payload.Topic)
	if err != nil {
		slog.Info(err.Error())
		j.notify(ctx, payload.ChatID, "❌ Could not save the post to the table")
		return nil
	}

	post := draft.Post
	if post.ImageURL != "" && !draft.PhotoSent {
		if _, err := j.tg.SendPhoto(ctx, payload.ChatID, service.Photo{Ref: post.ImageURL}, post.Title); err != nil {
			slog.Error("failed to send preview image", "id", post.ID, "err", err)
		}
	}

	preview := fmt.Sprintf("✅ Draft %s saved\n\n%s", post.ID, service.PublishText(post))
	if post.ImageURL == "" {
		preview += "\n\n⚠️ No image could be generated."
	}
	j.notify(ctx, payload.ChatID, preview)
	return nil
}

func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("bad %s payload: %w", TaskTypePublishPost, asynq.SkipRetry)
	}

	// A failed task would be archived under its id and block later enqueues
	// of the same post, so store errors end the task as handled.
	post, err := j.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		slog.Info(err.Error())
		j.notify(ctx, payload.ChatID, fmt.Sprintf("❌ Post %s was not published: the posts table is unavailable", payload.PostID))
		return nil
	}
	if post == nil {
		slog.Info("post to publish no longer exists", "post_id", payload.PostID)
		return nil
	}
	if payload.ScheduledAt != "" && (post.Status != models.PostStatusScheduled || post.ScheduledAt != payload.ScheduledAt) {
		slog.Info("dropping stale publish task", "post_id", post.ID, "task_at", payload.ScheduledAt, "post_at", post.ScheduledAt)
		return nil
	}

	published, err := j.ps.Publish(ctx, post.ID)
	switch {
	case errors.Is(err, service.ErrAlreadyPublished):
		slog.Info("post already published", "post_id", post.ID)
		return nil
	case err != nil:
		slog.Info(err.Error())
		j.notify(ctx, payload.ChatID, fmt.Sprintf("❌ Post %s was not published: %s", post.ID, err.Error()))
		return nil
	}

	if published != nil {
		j.notify(ctx, payload.ChatID, fmt.Sprintf("📣 Post %s published (message %s)", published.ID, published.MessageID))
	}
	return nil
}

func (j *Queue) notify(ctx context.Context, chatID, text string) {
	if chatID == "" {
		return
	}
	if _, err := j.tg.SendMessage(ctx, chatID, text); err != nil {
		slog.Error("failed to notify chat", "chat_id", chatID, "err", err)
	}
}
