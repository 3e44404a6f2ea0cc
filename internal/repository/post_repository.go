package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/pkg/utils"
)

type PostRepository interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, post *models.Post) (string, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Post, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	UpdateFields(ctx context.Context, id string, update models.PostUpdate) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

type postRepository struct {
	ws  Worksheet
	now func() time.Time

	mu        sync.Mutex
	lastMicro int64
}

func NewPostRepository(ws Worksheet) PostRepository {
	return &postRepository{ws: ws, now: time.Now}
}

func (r *postRepository) EnsureSchema(ctx context.Context) error {
	current, err := r.ws.RowValues(ctx, 1)
	if err != nil {
		return fmt.Errorf("error reading header: %w", err)
	}
	if headerMatches(current) {
		return nil
	}

	slog.Info("rewriting posts header", "found", current)
	if err := r.ws.UpdateRow(ctx, 1, models.PostHeaders); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	return nil
}

func headerMatches(current []string) bool {
	for len(current) > 0 && strings.TrimSpace(current[len(current)-1]) == "" {
		current = current[:len(current)-1]
	}
	if len(current) != len(models.PostHeaders) {
		return false
	}
	for i, h := range models.PostHeaders {
		if !strings.EqualFold(strings.TrimSpace(current[i]), h) {
			return false
		}
	}
	return true
}

// Create appends the post and fills in its ID, Status and CreatedAt. When the
// append fails, a second append records the failure in the error column; an
// error is returned only if that one fails too.
func (r *postRepository) Create(ctx context.Context, post *models.Post) (string, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return "", err
	}

	existing, err := r.body(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, row := range existing {
		taken[cellAt(row, models.ColID)] = true
	}

	post.ID = r.nextID()
	for taken[post.ID] {
		post.ID = r.nextID()
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}
	if post.CreatedAt == "" {
		post.CreatedAt = r.now().UTC().Format(time.RFC3339)
	}
	post.Title = utils.SanitizeTitle(post.Title)
	post.Text = utils.SanitizeText(post.Text)
	post.ImagePrompt = utils.SanitizeText(post.ImagePrompt)
	post.Error = utils.SanitizeText(post.Error)

	row := toRow(post)
	if err := r.ws.AppendRow(ctx, row); err != nil {
		slog.Error("append failed, retrying with error recorded", "id", post.ID, "err", err)

		post.Error = utils.SanitizeText(err.Error())
		row[models.ColError-1] = post.Error
		if err := r.ws.AppendRow(ctx, row); err != nil {
			slog.Info(err.Error())
			return "", fmt.Errorf("error appending post: %w", err)
		}
	}

	return post.ID, nil
}

// nextID derives a short id from the current time in microseconds. Every call
// returns a larger value than the one before, so callers skip ids already in
// the sheet by asking again.
func (r *postRepository) nextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	micro := r.now().UnixMicro()
	if micro <= r.lastMicro {
		micro = r.lastMicro + 1
	}
	r.lastMicro = micro
	return strconv.FormatInt(micro, 36)
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	_, row, err := r.find(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	return fromRow(row), nil
}

func (r *postRepository) ListRecent(ctx context.Context, limit int) ([]*models.Post, error) {
	body, err := r.body(ctx)
	if err != nil {
		return nil, err
	}

	var posts []*models.Post
	for i := len(body) - 1; i >= 0; i-- {
		if limit > 0 && len(posts) >= limit {
			break
		}
		if !usableRow(body[i]) {
			continue
		}
		posts = append(posts, fromRow(body[i]))
	}
	return posts, nil
}

func (r *postRepository) ListByStatus(ctx context.Context, status string) ([]*models.Post, error) {
	body, err := r.body(ctx)
	if err != nil {
		return nil, err
	}

	var posts []*models.Post
	for _, row := range body {
		if usableRow(row) && cellAt(row, models.ColStatus) == status {
			posts = append(posts, fromRow(row))
		}
	}
	return posts, nil
}

// ListDue returns scheduled posts whose scheduled_at is not after now.
// Rows with an unreadable timestamp are skipped.
func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	scheduled, err := r.ListByStatus(ctx, models.PostStatusScheduled)
	if err != nil {
		return nil, err
	}

	var due []*models.Post
	for _, p := range scheduled {
		at, err := time.Parse(time.RFC3339, p.ScheduledAt)
		if err != nil {
			slog.Info("skipping post with bad scheduled_at", "id", p.ID, "scheduled_at", p.ScheduledAt)
			continue
		}
		if !at.After(now) {
			due = append(due, p)
		}
	}
	return due, nil
}

func (r *postRepository) UpdateFields(ctx context.Context, id string, update models.PostUpdate) (bool, error) {
	rowNum, row, err := r.find(ctx, id)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}

	cells := map[int]string{}
	if update.Title != nil || update.Text != nil {
		title, text := utils.DecodePostCell(cellAt(row, models.ColPost))
		if update.Title != nil {
			title = utils.SanitizeTitle(*update.Title)
		}
		if update.Text != nil {
			text = utils.SanitizeText(*update.Text)
		}
		setIfChanged(cells, row, models.ColPost, utils.EncodePostCell(title, text))
	}
	if update.ImagePrompt != nil {
		setIfChanged(cells, row, models.ColImagePrompt, utils.SanitizeText(*update.ImagePrompt))
	}
	if update.ImageURL != nil {
		setIfChanged(cells, row, models.ColImageURL, *update.ImageURL)
	}
	if update.Status != nil {
		setIfChanged(cells, row, models.ColStatus, *update.Status)
	}
	if update.ScheduledAt != nil {
		setIfChanged(cells, row, models.ColScheduledAt, *update.ScheduledAt)
	}
	if update.PostedAt != nil {
		setIfChanged(cells, row, models.ColPostedAt, *update.PostedAt)
	}
	if update.MessageID != nil {
		setIfChanged(cells, row, models.ColMessageID, *update.MessageID)
	}
	if update.Error != nil {
		setIfChanged(cells, row, models.ColError, utils.SanitizeText(*update.Error))
	}

	if len(cells) == 0 {
		return true, nil
	}
	if err := r.ws.UpdateCells(ctx, rowNum, cells); err != nil {
		return false, fmt.Errorf("error updating post %s: %w", id, err)
	}
	return true, nil
}

func setIfChanged(cells map[int]string, row []string, col int, value string) {
	if cellAt(row, col) != value {
		cells[col] = value
	}
}

func (r *postRepository) Remove(ctx context.Context, id string) (bool, error) {
	rowNum, row, err := r.find(ctx, id)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}

	if err := r.ws.DeleteRow(ctx, rowNum); err != nil {
		return false, fmt.Errorf("error deleting post %s: %w", id, err)
	}
	return true, nil
}

// find scans the rows below the header top to bottom and returns the 1-based
// sheet row of the first match. A nil row means the id is absent.
func (r *postRepository) find(ctx context.Context, id string) (int, []string, error) {
	if id == "" {
		return 0, nil, nil
	}

	body, err := r.body(ctx)
	if err != nil {
		return 0, nil, err
	}
	for i, row := range body {
		if len(row) == 0 {
			continue
		}
		if cellAt(row, models.ColID) == id {
			return i + 2, row, nil
		}
	}
	return 0, nil, nil
}

func (r *postRepository) body(ctx context.Context) ([][]string, error) {
	values, err := r.ws.AllValues(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading posts: %w", err)
	}
	if len(values) <= 1 {
		return nil, nil
	}
	return values[1:], nil
}

func usableRow(row []string) bool {
	if len(row) < models.ColPost {
		return false
	}
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func toRow(p *models.Post) []string {
	row := make([]string, len(models.PostHeaders))
	row[models.ColID-1] = p.ID
	row[models.ColStatus-1] = p.Status
	row[models.ColPost-1] = utils.EncodePostCell(p.Title, p.Text)
	row[models.ColImagePrompt-1] = p.ImagePrompt
	row[models.ColImageURL-1] = p.ImageURL
	row[models.ColCreatedAt-1] = p.CreatedAt
	row[models.ColScheduledAt-1] = p.ScheduledAt
	row[models.ColPostedAt-1] = p.PostedAt
	row[models.ColChatID-1] = p.ChatID
	row[models.ColMessageID-1] = p.MessageID
	row[models.ColError-1] = p.Error
	return row
}

func fromRow(row []string) *models.Post {
	title, text := utils.DecodePostCell(cellAt(row, models.ColPost))
	return &models.Post{
		ID:          cellAt(row, models.ColID),
		Status:      cellAt(row, models.ColStatus),
		Title:       title,
		Text:        text,
		ImagePrompt: cellAt(row, models.ColImagePrompt),
		ImageURL:    cellAt(row, models.ColImageURL),
		CreatedAt:   cellAt(row, models.ColCreatedAt),
		ScheduledAt: cellAt(row, models.ColScheduledAt),
		PostedAt:    cellAt(row, models.ColPostedAt),
		ChatID:      cellAt(row, models.ColChatID),
		MessageID:   cellAt(row, models.ColMessageID),
		Error:       cellAt(row, models.ColError),
	}
}
