package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/travelpost-bot/internal/models"
)

type PostingHistoryRepository interface {
	Migrate(ctx context.Context) error
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS posting_history (
			id            BIGSERIAL PRIMARY KEY,
			post_id       TEXT NOT NULL,
			channel_id    TEXT NOT NULL DEFAULT '',
			message_id    TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (post_id, channel_id, message_id, error_message)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.PostID, ph.ChannelID, ph.MessageID, ph.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postingHistoryRepository) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	query := `SELECT id, post_id, channel_id, message_id, error_message, created_at FROM posting_history WHERE post_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.PostID, &ph.ChannelID, &ph.MessageID, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
