package queue

import (
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/maheshrc27/travelpost-bot/internal/service"
)

type Queue struct {
	pr repository.PostRepository
	ps service.PostService
	tg service.TelegramService
}

func NewQueue(
	pr repository.PostRepository,
	ps service.PostService,
	tg service.TelegramService) *Queue {
	return &Queue{
		pr: pr,
		ps: ps,
		tg: tg,
	}
}

const (
	TaskTypeGeneratePost = "post:generate"
	TaskTypePublishPost  = "post:publish"
)

type GeneratePostPayload struct {
	ChatID string `json:"chat_id"`
	Topic  string `json:"topic"`
}

// PublishPostPayload names the post to publish. ScheduledAt is the schedule
// the task was created for; a task whose post has since been rescheduled is
// dropped. ChatID, when set, receives the outcome.
type PublishPostPayload struct {
	PostID      string `json:"post_id"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
}
