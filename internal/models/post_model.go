package models

// Post is one row of the posts worksheet. Title and Text share the "post" cell.
type Post struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // draft, scheduled, posted, failed
	Title       string `json:"title"`
	Text        string `json:"text"`
	ImagePrompt string `json:"image_prompt"`
	ImageURL    string `json:"image_url"`
	CreatedAt   string `json:"created_at"`
	ScheduledAt string `json:"scheduled_at"`
	PostedAt    string `json:"posted_at"`
	ChatID      string `json:"chat_id"`
	MessageID   string `json:"message_id"`
	Error       string `json:"error"`
}

// PostUpdate carries optional field changes. A nil field keeps the stored value.
type PostUpdate struct {
	Title       *string
	Text        *string
	ImagePrompt *string
	ImageURL    *string
	Status      *string
	ScheduledAt *string
	PostedAt    *string
	MessageID   *string
	Error       *string
}

// Empty reports whether the update changes nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Text == nil && u.ImagePrompt == nil && u.ImageURL == nil &&
		u.Status == nil && u.ScheduledAt == nil && u.PostedAt == nil && u.MessageID == nil && u.Error == nil
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

// TelegramImagePrefix marks image locators that are Telegram file ids rather than URLs.
const TelegramImagePrefix = "tg:"

// Column positions (1-based) in the posts worksheet.
const (
	ColID = iota + 1
	ColStatus
	ColPost
	ColImagePrompt
	ColImageURL
	ColCreatedAt
	ColScheduledAt
	ColPostedAt
	ColChatID
	ColMessageID
	ColError
)

// PostHeaders is the canonical header row. Order matches the Col* constants.
var PostHeaders = []string{
	"id", "status", "post", "image_prompt", "image_url",
	"created_at", "scheduled_at", "posted_at", "chat_id", "message_id", "error",
}

// IsPostStatus reports whether s is one of the known statuses.
func IsPostStatus(s string) bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPosted, PostStatusFailed:
		return true
	}
	return false
}

// StringPtr returns a pointer to s, for building PostUpdate values.
func StringPtr(s string) *string {
	return &s
}
