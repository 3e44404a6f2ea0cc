// Package conversation drives the multi-turn edit and delete flows. Every
// turn loads the session for its key, advances it and saves or discards it;
// nothing is kept between turns outside the SessionStore.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/maheshrc27/travelpost-bot/pkg/utils"
)

// KeepSentinel is the reply that keeps the current value of a field.
const KeepSentinel = "Z"

const storeFailureReply = "⚠️ The posts table is unavailable right now, try again later."

var affirmatives = map[string]bool{"y": true, "yes": true, "д": true, "да": true}

// ImageRenderer produces a new image for a prompt and returns its locator,
// or "" when there is none.
type ImageRenderer interface {
	RenderImage(ctx context.Context, chatID, prompt string) string
}

type Machine struct {
	posts    repository.PostRepository
	sessions SessionStore
	images   ImageRenderer
}

// NewMachine builds the state machine. images may be nil, in which case a new
// image prompt is stored without rendering a picture.
func NewMachine(posts repository.PostRepository, sessions SessionStore, images ImageRenderer) *Machine {
	return &Machine{posts: posts, sessions: sessions, images: images}
}

// Active reports whether key has a flow waiting for input.
func (m *Machine) Active(ctx context.Context, key string) bool {
	s, err := m.sessions.Get(ctx, key)
	return err == nil && s != nil
}

// StartEdit begins the edit flow for post id. Any flow already open for key
// is replaced.
func (m *Machine) StartEdit(ctx context.Context, key, chatID, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "Usage: /editpost <id>"
	}

	// Starting a flow ends the previous one whatever the outcome.
	post, err := m.posts.GetByID(ctx, id)
	if err != nil {
		slog.Info(err.Error())
		m.discard(ctx, key)
		return storeFailureReply
	}
	if post == nil {
		m.discard(ctx, key)
		return fmt.Sprintf("❌ Post %s not found", id)
	}

	s := &Session{Key: key, ChatID: chatID, Flow: FlowEdit, State: StateAwaitTitle, PostID: id, Original: *post}
	if err := m.sessions.Save(ctx, s); err != nil {
		return storeFailureReply
	}

	return fmt.Sprintf("Editing post %s.\n\n*Current title:* %s\nSend a new title or %s to keep it.", id, post.Title, KeepSentinel)
}

// StartDelete asks for confirmation before deleting post id.
func (m *Machine) StartDelete(ctx context.Context, key, chatID, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "Usage: /delete <id>"
	}

	post, err := m.posts.GetByID(ctx, id)
	if err != nil {
		slog.Info(err.Error())
		m.discard(ctx, key)
		return storeFailureReply
	}
	if post == nil {
		m.discard(ctx, key)
		return fmt.Sprintf("❌ Post %s not found", id)
	}

	s := &Session{Key: key, ChatID: chatID, Flow: FlowDelete, State: StateAwaitConfirmation, PostID: id, Original: *post}
	if err := m.sessions.Save(ctx, s); err != nil {
		return storeFailureReply
	}

	return fmt.Sprintf("Delete this post?\n\n*%s*\n%s\n\nSend Y to delete, anything else to cancel.", post.Title, post.Text)
}

// Cancel drops the open flow for key, if any.
func (m *Machine) Cancel(ctx context.Context, key string) string {
	s, err := m.sessions.Get(ctx, key)
	if err != nil || s == nil {
		return "Nothing to cancel."
	}
	m.discard(ctx, key)
	return "Cancelled."
}

// Handle feeds one line of user input to the open flow. handled is false when
// key has no flow waiting for input.
func (m *Machine) Handle(ctx context.Context, key, input string) (reply string, handled bool) {
	s, err := m.sessions.Get(ctx, key)
	if err != nil {
		return storeFailureReply, true
	}
	if s == nil {
		return "", false
	}

	input = strings.TrimSpace(input)
	switch s.Flow {
	case FlowEdit:
		return m.handleEdit(ctx, s, input), true
	case FlowDelete:
		return m.handleDelete(ctx, s, input), true
	}

	slog.Info("dropping session with unknown flow", "key", key, "flow", s.Flow)
	m.discard(ctx, key)
	return "", false
}

func (m *Machine) handleEdit(ctx context.Context, s *Session, input string) string {
	if input == "" {
		return fmt.Sprintf("Send a value or %s to keep the current one.", KeepSentinel)
	}
	switch s.State {
	case StateAwaitTitle:
		s.Title = pending(input, utils.SanitizeTitle)
		s.State = StateAwaitText
		if err := m.sessions.Save(ctx, s); err != nil {
			m.discard(ctx, s.Key)
			return storeFailureReply
		}
		return fmt.Sprintf("*Current text:* %s\nSend new text or %s to keep it.", s.Original.Text, KeepSentinel)

	case StateAwaitText:
		s.Text = pending(input, utils.SanitizeText)
		s.State = StateAwaitImagePrompt
		if err := m.sessions.Save(ctx, s); err != nil {
			m.discard(ctx, s.Key)
			return storeFailureReply
		}
		return fmt.Sprintf("*Current image prompt:* %s\nSend a new image prompt or %s to keep it.", s.Original.ImagePrompt, KeepSentinel)

	case StateAwaitImagePrompt:
		s.ImagePrompt = pending(input, utils.SanitizeText)
		defer m.discard(ctx, s.Key)
		return m.commitEdit(ctx, s)
	}

	m.discard(ctx, s.Key)
	return "Edit session expired, start again with /editpost <id>."
}

func (m *Machine) commitEdit(ctx context.Context, s *Session) string {
	update := models.PostUpdate{Title: s.Title, Text: s.Text, ImagePrompt: s.ImagePrompt}

	ok, err := m.posts.UpdateFields(ctx, s.PostID, update)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if !ok {
		return fmt.Sprintf("❌ Post %s no longer exists, nothing was saved", s.PostID)
	}

	var note string
	if s.ImagePrompt != nil && m.images != nil {
		note = m.refreshImage(ctx, s)
	}

	post, err := m.posts.GetByID(ctx, s.PostID)
	if err != nil || post == nil {
		return fmt.Sprintf("✅ Post %s updated%s", s.PostID, note)
	}
	return fmt.Sprintf("✅ Post %s updated%s\n\n%s", s.PostID, note, FormatPost(post))
}

func (m *Machine) refreshImage(ctx context.Context, s *Session) string {
	locator := m.images.RenderImage(ctx, s.ChatID, *s.ImagePrompt)
	if locator == "" {
		return "\n⚠️ Could not generate a new image, the old one is kept."
	}
	if _, err := m.posts.UpdateFields(ctx, s.PostID, models.PostUpdate{ImageURL: &locator}); err != nil {
		slog.Info(err.Error())
		return "\n⚠️ New image generated but could not be saved."
	}
	return "\n🖼 New image generated."
}

func (m *Machine) handleDelete(ctx context.Context, s *Session, input string) string {
	defer m.discard(ctx, s.Key)

	if !affirmatives[strings.ToLower(input)] {
		return "❌ Deletion cancelled"
	}

	ok, err := m.posts.Remove(ctx, s.PostID)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if !ok {
		return fmt.Sprintf("❌ Post %s was not found, nothing deleted", s.PostID)
	}
	return fmt.Sprintf("✅ Post %s deleted", s.PostID)
}

func (m *Machine) discard(ctx context.Context, key string) {
	if err := m.sessions.Delete(ctx, key); err != nil {
		slog.Error("failed to discard session", "key", key, "err", err)
	}
}

// pending turns user input into a pending field value; the keep sentinel
// becomes nil.
func pending(input string, sanitize func(string) string) *string {
	if strings.EqualFold(input, KeepSentinel) {
		return nil
	}
	v := sanitize(input)
	return &v
}

// FormatPost renders every user-facing field of a post for a chat reply.
func FormatPost(p *models.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*ID:* %s\n", p.ID)
	fmt.Fprintf(&b, "*Status:* %s\n", p.Status)
	fmt.Fprintf(&b, "*Title:* %s\n", p.Title)
	fmt.Fprintf(&b, "*Text:* %s\n", p.Text)
	fmt.Fprintf(&b, "*Image prompt:* %s\n", p.ImagePrompt)
	fmt.Fprintf(&b, "*Image:* %s", p.ImageURL)
	if p.ScheduledAt != "" {
		fmt.Fprintf(&b, "\n*Scheduled:* %s", p.ScheduledAt)
	}
	if p.PostedAt != "" {
		fmt.Fprintf(&b, "\n*Posted:* %s", p.PostedAt)
	}
	if p.Error != "" {
		fmt.Fprintf(&b, "\n*Error:* %s", p.Error)
	}
	return b.String()
}
