package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Enqueuer is the part of *asynq.Client the bot needs.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func EnqueueGenerate(c Enqueuer, payload GeneratePostPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeGeneratePost, taskPayload)
	if _, err := c.Enqueue(task, asynq.MaxRetry(0), asynq.Timeout(5*time.Minute)); err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("generation queued", "chat_id", payload.ChatID, "topic", payload.Topic)
	return nil
}

// EnqueuePublish queues a publish task after delay. Tasks for the same post
// and schedule share an id, so a second enqueue while one is pending is a
// no-op. Immediate publishes get a fresh id per request.
func EnqueuePublish(c Enqueuer, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	taskID, err := publishTaskID(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)
	opts := []asynq.Option{
		asynq.MaxRetry(0),
		asynq.ProcessIn(delay),
		asynq.TaskID(taskID),
	}

	_, err = c.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		slog.Info("publish already queued", "post_id", payload.PostID)
		return nil
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("publish queued", "post_id", payload.PostID, "delay", delay)
	return nil
}

func publishTaskID(p PublishPostPayload) (string, error) {
	if p.ScheduledAt != "" {
		return fmt.Sprintf("publish:%s:%s", p.PostID, p.ScheduledAt), nil
	}
	requestID, err := gonanoid.New(12)
	if err != nil {
		return "", fmt.Errorf("error generating task id: %w", err)
	}
	return fmt.Sprintf("publish:%s:now:%s", p.PostID, requestID), nil
}

// Scheduler hands long-running bot work to the asynq workers.
type Scheduler struct {
	client Enqueuer
	now    func() time.Time
}

func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{client: client, now: time.Now}
}

func (s *Scheduler) Generate(ctx context.Context, chatID, topic string) error {
	return EnqueueGenerate(s.client, GeneratePostPayload{ChatID: chatID, Topic: topic})
}

// Publish queues post id for publishing at at, or right away when at is zero.
func (s *Scheduler) Publish(ctx context.Context, postID, chatID string, at time.Time) error {
	payload := PublishPostPayload{PostID: postID, ChatID: chatID}
	var delay time.Duration
	if !at.IsZero() {
		payload.ScheduledAt = at.UTC().Format(time.RFC3339)
		delay = at.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
	}
	return EnqueuePublish(s.client, payload, delay)
}
