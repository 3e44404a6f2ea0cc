package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/queue"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
)

// PublishSweepJob queues every scheduled post that is due. It picks up
// schedules typed straight into the sheet and tasks lost with Redis.
type PublishSweepJob struct {
	pr  repository.PostRepository
	enq queue.Enqueuer
	now func() time.Time
}

func NewPublishSweepJob(pr repository.PostRepository, enq queue.Enqueuer) *PublishSweepJob {
	return &PublishSweepJob{
		pr:  pr,
		enq: enq,
		now: time.Now,
	}
}

func (c *PublishSweepJob) SweepDuePosts() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	posts, err := c.pr.ListDue(ctx, c.now())
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, p := range posts {
		payload := queue.PublishPostPayload{PostID: p.ID, ScheduledAt: p.ScheduledAt, ChatID: p.ChatID}
		if err := queue.EnqueuePublish(c.enq, payload, 0); err != nil {
			slog.Info("Unable to queue due post", "post_id", p.ID, "err", err)
		}
	}
}
