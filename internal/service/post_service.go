package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
)

var (
	ErrAlreadyPublished = errors.New("post is already published")
	ErrNoChannel        = errors.New("TELEGRAM_CHANNEL_ID is not configured")
)

// Draft is a freshly created post. PhotoSent is true when the image already
// reached the chat while being re-hosted through Telegram.
type Draft struct {
	Post      *models.Post
	Image     []byte
	PhotoSent bool
}

type PostService interface {
	CreateDraft(ctx context.Context, chatID, topic string) (*Draft, error)
	RenderImage(ctx context.Context, chatID, prompt string) string
	Schedule(ctx context.Context, id string, at time.Time) (bool, error)
	Publish(ctx context.Context, id string) (*models.Post, error)
}

type postService struct {
	posts     repository.PostRepository
	history   repository.PostingHistoryRepository
	gen       GenerationService
	images    ImageService
	host      ImageHost
	tg        TelegramService
	channelID string
	now       func() time.Time
}

func NewPostService(
	posts repository.PostRepository,
	history repository.PostingHistoryRepository,
	gen GenerationService,
	images ImageService,
	host ImageHost,
	tg TelegramService,
	channelID string) PostService {
	return &postService{
		posts:     posts,
		history:   history,
		gen:       gen,
		images:    images,
		host:      host,
		tg:        tg,
		channelID: channelID,
		now:       time.Now,
	}
}

// CreateDraft generates text and an image for the topic and stores the result.
// Generation problems degrade to placeholder text or a post without image;
// only a failed store write is returned as an error.
func (s *postService) CreateDraft(ctx context.Context, chatID, topic string) (*Draft, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}

	generated := s.gen.GeneratePost(ctx, topic)
	post := &models.Post{
		Title:       generated.Title,
		Text:        generated.Text,
		ImagePrompt: generated.ImagePrompt,
		ChatID:      chatID,
	}

	draft := &Draft{Post: post}
	if image := s.images.GenerateImage(ctx, generated.ImagePrompt); image != nil {
		draft.Image = image
		post.ImageURL, draft.PhotoSent = s.hostImage(ctx, chatID, image, generated.Title)
	}

	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("error saving post: %w", err)
	}

	slog.Info("draft created", "id", post.ID, "topic", topic, "image", post.ImageURL != "")
	return draft, nil
}

// RenderImage generates and hosts a new image, returning its locator or ""
// when no image could be produced.
func (s *postService) RenderImage(ctx context.Context, chatID, prompt string) string {
	image := s.images.GenerateImage(ctx, prompt)
	if image == nil {
		return ""
	}
	locator, _ := s.hostImage(ctx, chatID, image, "New image")
	return locator
}

// hostImage uploads to the image host and falls back to sending the bytes to
// the chat, recording the Telegram file id instead of a URL.
func (s *postService) hostImage(ctx context.Context, chatID string, image []byte, caption string) (string, bool) {
	if s.host != nil {
		url, err := s.host.Upload(ctx, image)
		if err == nil {
			return url, false
		}
		slog.Info("image upload failed, re-hosting via telegram", "err", err)
	}

	msg, err := s.tg.SendPhoto(ctx, chatID, Photo{Bytes: image}, caption)
	if err != nil {
		slog.Error("failed to re-host image via telegram", "chat_id", chatID, "err", err)
		return "", false
	}
	if fileID := LargestPhotoID(msg); fileID != "" {
		return models.TelegramImagePrefix + fileID, true
	}
	return "", true
}

func (s *postService) Schedule(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.posts.UpdateFields(ctx, id, models.PostUpdate{
		Status:      models.StringPtr(models.PostStatusScheduled),
		ScheduledAt: models.StringPtr(at.UTC().Format(time.RFC3339)),
		Error:       models.StringPtr(""),
	})
}

// Publish sends the post to the channel and records the outcome in the sheet.
// It returns nil, nil when the post does not exist.
func (s *postService) Publish(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil || post == nil {
		return nil, err
	}
	if post.Status == models.PostStatusPosted {
		return post, ErrAlreadyPublished
	}
	if s.channelID == "" {
		return post, ErrNoChannel
	}

	messageID, sendErr := s.sendToChannel(ctx, post)
	s.recordHistory(ctx, post.ID, messageID, sendErr)

	update := models.PostUpdate{}
	if sendErr != nil {
		update.Status = models.StringPtr(models.PostStatusFailed)
		update.Error = models.StringPtr(sendErr.Error())
	} else {
		update.Status = models.StringPtr(models.PostStatusPosted)
		update.PostedAt = models.StringPtr(s.now().UTC().Format(time.RFC3339))
		update.MessageID = models.StringPtr(messageID)
		update.Error = models.StringPtr("")
	}

	if _, err := s.posts.UpdateFields(ctx, post.ID, update); err != nil {
		return post, fmt.Errorf("error saving publish result: %w", err)
	}
	if sendErr != nil {
		return post, fmt.Errorf("failed to publish post %s: %w", post.ID, sendErr)
	}

	slog.Info("post published", "id", post.ID, "message_id", messageID)
	return s.posts.GetByID(ctx, post.ID)
}

func (s *postService) sendToChannel(ctx context.Context, post *models.Post) (string, error) {
	body := PublishText(post)

	if post.ImageURL == "" {
		msg, err := s.tg.SendMessage(ctx, s.channelID, body)
		if err != nil {
			return "", err
		}
		return FormatChatID(msg.MessageID), nil
	}

	photo := Photo{Ref: strings.TrimPrefix(post.ImageURL, models.TelegramImagePrefix)}
	if len([]rune(body)) <= maxCaptionRunes {
		msg, err := s.tg.SendPhoto(ctx, s.channelID, photo, body)
		if err != nil {
			return "", err
		}
		return FormatChatID(msg.MessageID), nil
	}

	// Too long for a caption: photo first, then the full text.
	if _, err := s.tg.SendPhoto(ctx, s.channelID, photo, ""); err != nil {
		return "", err
	}
	msg, err := s.tg.SendMessage(ctx, s.channelID, body)
	if err != nil {
		return "", err
	}
	return FormatChatID(msg.MessageID), nil
}

func (s *postService) recordHistory(ctx context.Context, postID, messageID string, sendErr error) {
	if s.history == nil {
		return
	}
	ph := &models.PostingHistory{PostID: postID, ChannelID: s.channelID, MessageID: messageID}
	if sendErr != nil {
		ph.ErrorMessage = sendErr.Error()
	}
	if _, err := s.history.Create(ctx, ph); err != nil {
		slog.Error("failed to save posting history", "id", postID, "err", err)
	}
}

// PublishText renders a post for the channel using Telegram Markdown.
func PublishText(post *models.Post) string {
	if post.Title == "" {
		return post.Text
	}
	return "*" + post.Title + "*\n\n" + post.Text
}
