package models

import "time"

// PostingHistory records one attempt to publish a post to the channel.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	PostID       string    `db:"post_id" json:"post_id"`
	ChannelID    string    `db:"channel_id" json:"channel_id"`
	MessageID    string    `db:"message_id" json:"message_id"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
