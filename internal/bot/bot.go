package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/conversation"
	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/maheshrc27/travelpost-bot/internal/service"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
)

const scheduleLayout = "2006-01-02 15:04"

const helpText = "Commands:\n" +
	"/newpost <topic> — generate a new post\n" +
	"/editpost <id> — edit a post\n" +
	"/list — recent posts\n" +
	"/list <status> — posts with status draft, scheduled, posted or failed\n" +
	"/list <id> — show one post\n" +
	"/delete <id> — delete a post\n" +
	"/schedule <id> <YYYY-MM-DD HH:MM> — publish later\n" +
	"/publish <id> — publish to the channel now\n" +
	"/cancel — stop the current edit or delete"

// Scheduler runs generation and publishing outside the update handler.
type Scheduler interface {
	Generate(ctx context.Context, chatID, topic string) error
	Publish(ctx context.Context, postID, chatID string, at time.Time) error
}

type Bot struct {
	posts     repository.PostRepository
	ps        service.PostService
	machine   *conversation.Machine
	tg        service.TelegramService
	tasks     Scheduler
	loc       *time.Location
	listLimit int
	now       func() time.Time

	mu      sync.Mutex
	pending map[string][]transfer.TelegramUpdate
	wg      sync.WaitGroup
}

func NewBot(
	posts repository.PostRepository,
	ps service.PostService,
	machine *conversation.Machine,
	tg service.TelegramService,
	tasks Scheduler,
	loc *time.Location,
	listLimit int) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		posts:     posts,
		ps:        ps,
		machine:   machine,
		tg:        tg,
		tasks:     tasks,
		loc:       loc,
		listLimit: listLimit,
		now:       time.Now,
		pending:   map[string][]transfer.TelegramUpdate{},
	}
}

const updateTimeout = 2 * time.Minute

// Dispatch queues the update and returns right away. Updates of one session
// are handled one at a time in arrival order; different sessions run
// concurrently.
func (b *Bot) Dispatch(update transfer.TelegramUpdate) {
	if update.Message == nil {
		return
	}
	key := sessionKey(update.Message)

	b.mu.Lock()
	queued, running := b.pending[key]
	b.pending[key] = append(queued, update)
	if !running {
		b.wg.Add(1)
	}
	b.mu.Unlock()

	if !running {
		go b.drain(key)
	}
}

// drain handles the queued updates of key until none are left, then forgets
// the key.
func (b *Bot) drain(key string) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		queued := b.pending[key]
		if len(queued) == 0 {
			delete(b.pending, key)
			b.mu.Unlock()
			return
		}
		next := queued[0]
		b.pending[key] = queued[1:]
		b.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		b.HandleUpdate(ctx, next)
		cancel()
	}
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate answers one update synchronously. Callers that may run turns
// of the same session concurrently go through Dispatch instead.
func (b *Bot) HandleUpdate(ctx context.Context, update transfer.TelegramUpdate) {
	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	chatID := service.FormatChatID(msg.Chat.ID)
	reply := b.handleText(ctx, sessionKey(msg), chatID, msg.Text)
	if reply == "" {
		return
	}
	if _, err := b.tg.SendMessage(ctx, chatID, reply); err != nil {
		slog.Error("failed to send reply", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) handleText(ctx context.Context, key, chatID, text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		if reply, handled := b.machine.Handle(ctx, key, text); handled {
			return reply
		}
		return "Send /help to see what I can do."
	}

	command, rest := splitCommand(text)
	args := strings.Fields(rest)

	switch command {
	case "/start":
		return "Hi! I write travel posts and keep them in a Google Sheet.\n\n" + helpText
	case "/help":
		return helpText
	case "/newpost":
		return b.newPost(ctx, chatID, rest)
	case "/editpost":
		return b.machine.StartEdit(ctx, key, chatID, firstArg(args))
	case "/delete":
		return b.machine.StartDelete(ctx, key, chatID, firstArg(args))
	case "/cancel":
		return b.machine.Cancel(ctx, key)
	case "/list":
		return b.list(ctx, firstArg(args))
	case "/schedule":
		return b.schedule(ctx, chatID, args)
	case "/publish":
		return b.publish(ctx, chatID, firstArg(args))
	}
	return "Unknown command. " + helpText
}

func (b *Bot) newPost(ctx context.Context, chatID, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "❌ Give a topic: /newpost <topic>"
	}
	if err := b.tasks.Generate(ctx, chatID, topic); err != nil {
		slog.Info(err.Error())
		return "❌ Could not start generation, try again later"
	}
	return fmt.Sprintf("⏳ Generating a post about %s…", topic)
}

func (b *Bot) list(ctx context.Context, arg string) string {
	switch {
	case arg == "":
		posts, err := b.posts.ListRecent(ctx, b.listLimit)
		if err != nil {
			slog.Info(err.Error())
			return storeFailureReply
		}
		if len(posts) == 0 {
			return "No posts yet."
		}
		return listLines(posts)

	case models.IsPostStatus(strings.ToLower(arg)):
		status := strings.ToLower(arg)
		posts, err := b.posts.ListByStatus(ctx, status)
		if err != nil {
			slog.Info(err.Error())
			return storeFailureReply
		}
		if len(posts) == 0 {
			return fmt.Sprintf("No posts with status %s.", status)
		}
		return listLines(posts)
	}

	post, err := b.posts.GetByID(ctx, arg)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if post == nil {
		return fmt.Sprintf("❌ Post %s not found", arg)
	}
	return conversation.FormatPost(post)
}

func (b *Bot) schedule(ctx context.Context, chatID string, args []string) string {
	if len(args) < 3 {
		return "Usage: /schedule <id> <YYYY-MM-DD HH:MM>"
	}
	id := args[0]

	at, err := time.ParseInLocation(scheduleLayout, args[1]+" "+args[2], b.loc)
	if err != nil {
		return fmt.Sprintf("❌ Cannot read the time, use YYYY-MM-DD HH:MM (%s)", b.loc)
	}
	if !at.After(b.now()) {
		return "❌ That time is already in the past"
	}

	post, err := b.posts.GetByID(ctx, id)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if post == nil {
		return fmt.Sprintf("❌ Post %s not found", id)
	}
	if post.Status == models.PostStatusPosted {
		return fmt.Sprintf("Post %s is already published.", id)
	}

	ok, err := b.ps.Schedule(ctx, id, at)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if !ok {
		return fmt.Sprintf("❌ Post %s not found", id)
	}

	if err := b.tasks.Publish(ctx, id, chatID, at); err != nil {
		slog.Info(err.Error())
		return fmt.Sprintf("⚠️ Post %s is marked as scheduled, the periodic check will publish it.", id)
	}
	return fmt.Sprintf("🗓 Post %s will be published %s", id, at.Format(scheduleLayout+" MST"))
}

func (b *Bot) publish(ctx context.Context, chatID, id string) string {
	if id == "" {
		return "Usage: /publish <id>"
	}

	post, err := b.posts.GetByID(ctx, id)
	if err != nil {
		slog.Info(err.Error())
		return storeFailureReply
	}
	if post == nil {
		return fmt.Sprintf("❌ Post %s not found", id)
	}
	if post.Status == models.PostStatusPosted {
		return fmt.Sprintf("Post %s is already published.", id)
	}

	if err := b.tasks.Publish(ctx, id, chatID, time.Time{}); err != nil {
		slog.Info(err.Error())
		return "❌ Could not queue the post, try again later"
	}
	return fmt.Sprintf("⏳ Publishing post %s…", id)
}

const storeFailureReply = "⚠️ The posts table is unavailable right now, try again later."

func sessionKey(msg *transfer.TelegramMessage) string {
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	return fmt.Sprintf("%d:%d", msg.Chat.ID, userID)
}

// splitCommand separates "/cmd@botname rest" into "/cmd" and "rest".
func splitCommand(text string) (string, string) {
	command, rest, _ := strings.Cut(text, " ")
	if nl := strings.Index(command, "\n"); nl > 0 {
		rest = command[nl+1:] + " " + rest
		command = command[:nl]
	}
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	return strings.ToLower(command), strings.TrimSpace(rest)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func listLines(posts []*models.Post) string {
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		title := p.Title
		if title == "" {
			title, _, _ = strings.Cut(p.Text, "\n")
		}
		lines = append(lines, fmt.Sprintf("%s [%s] — %s", p.ID, p.Status, title))
	}
	return strings.Join(lines, "\n")
}
