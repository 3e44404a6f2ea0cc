package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/travelpost-bot/internal/models"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type mockTelegram struct {
	mock.Mock
}

func (m *mockTelegram) SendMessage(ctx context.Context, chatID, text string) (*transfer.TelegramMessage, error) {
	args := m.Called(chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.TelegramMessage), args.Error(1)
}

func (m *mockTelegram) SendPhoto(ctx context.Context, chatID string, photo Photo, caption string) (*transfer.TelegramMessage, error) {
	args := m.Called(chatID, photo, caption)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transfer.TelegramMessage), args.Error(1)
}

func (m *mockTelegram) SetWebhook(ctx context.Context, url, secret string) error {
	return m.Called(url, secret).Error(0)
}

func (m *mockTelegram) DeleteWebhook(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockTelegram) GetUpdates(ctx context.Context, offset int64) ([]transfer.TelegramUpdate, error) {
	args := m.Called(offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transfer.TelegramUpdate), args.Error(1)
}

type mockHost struct {
	mock.Mock
}

func (m *mockHost) Upload(ctx context.Context, image []byte) (string, error) {
	args := m.Called(image)
	return args.String(0), args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Migrate(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockHistory) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	args := m.Called(ph)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockHistory) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	args := m.Called(postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PostingHistory), args.Error(1)
}

type stubGeneration struct {
	post transfer.GeneratedPost
}

func (s stubGeneration) GeneratePost(ctx context.Context, topic string) transfer.GeneratedPost {
	return s.post
}

type stubImages struct {
	image []byte
}

func (s stubImages) GenerateImage(ctx context.Context, prompt string) []byte {
	return s.image
}

// --- Helpers ---

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type postServiceFixture struct {
	svc     *postService
	repo    repository.PostRepository
	tg      *mockTelegram
	host    *mockHost
	history *mockHistory
}

func newPostServiceFixture(image []byte) *postServiceFixture {
	repo := repository.NewPostRepository(repository.NewMemoryWorksheet(models.PostHeaders))
	f := &postServiceFixture{
		repo:    repo,
		tg:      new(mockTelegram),
		host:    new(mockHost),
		history: new(mockHistory),
	}
	gen := stubGeneration{post: transfer.GeneratedPost{Title: "Lisbon", Text: "Trams and tiles", ImagePrompt: "yellow tram"}}
	f.svc = NewPostService(repo, f.history, gen, stubImages{image: image}, f.host, f.tg, "@channel").(*postService)
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *postServiceFixture) seed(t *testing.T, p *models.Post) string {
	t.Helper()
	id, err := f.repo.Create(context.Background(), p)
	require.NoError(t, err)
	return id
}

// --- Tests ---

func TestCreateDraft_UploadsImage(t *testing.T) {
	f := newPostServiceFixture(pngHeader)
	f.host.On("Upload", pngHeader).Return("https://cdn.example.com/posts/a.png", nil)

	draft, err := f.svc.CreateDraft(context.Background(), "100", "  Lisbon  ")

	require.NoError(t, err)
	assert.False(t, draft.PhotoSent)
	assert.Equal(t, pngHeader, draft.Image)
	assert.Equal(t, "https://cdn.example.com/posts/a.png", draft.Post.ImageURL)

	stored, err := f.repo.GetByID(context.Background(), draft.Post.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Lisbon", stored.Title)
	assert.Equal(t, "Trams and tiles", stored.Text)
	assert.Equal(t, "yellow tram", stored.ImagePrompt)
	assert.Equal(t, "100", stored.ChatID)
	assert.Equal(t, models.PostStatusDraft, stored.Status)
	f.host.AssertExpectations(t)
	f.tg.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDraft_FallsBackToTelegramHosting(t *testing.T) {
	f := newPostServiceFixture(pngHeader)
	f.host.On("Upload", pngHeader).Return("", errors.New("bucket unreachable"))
	f.tg.On("SendPhoto", "100", Photo{Bytes: pngHeader}, "Lisbon").Return(&transfer.TelegramMessage{
		MessageID: 7,
		Photo: []transfer.TelegramPhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1024, Height: 1024},
			{FileID: "medium", Width: 320, Height: 320},
		},
	}, nil)

	draft, err := f.svc.CreateDraft(context.Background(), "100", "Lisbon")

	require.NoError(t, err)
	assert.True(t, draft.PhotoSent)
	assert.Equal(t, "tg:large", draft.Post.ImageURL)
	f.tg.AssertExpectations(t)
}

func TestCreateDraft_NoImage(t *testing.T) {
	f := newPostServiceFixture(nil)

	draft, err := f.svc.CreateDraft(context.Background(), "100", "Lisbon")

	require.NoError(t, err)
	assert.Empty(t, draft.Post.ImageURL)
	assert.Nil(t, draft.Image)
	f.host.AssertNotCalled(t, "Upload", mock.Anything)
}

func TestCreateDraft_EmptyTopic(t *testing.T) {
	f := newPostServiceFixture(nil)

	draft, err := f.svc.CreateDraft(context.Background(), "100", "   ")

	assert.Error(t, err)
	assert.Nil(t, draft)
}

func TestRenderImage_HostFailureAndTelegramFailure(t *testing.T) {
	f := newPostServiceFixture(pngHeader)
	f.host.On("Upload", pngHeader).Return("", errors.New("down"))
	f.tg.On("SendPhoto", "100", Photo{Bytes: pngHeader}, "New image").Return(nil, errors.New("blocked"))

	assert.Equal(t, "", f.svc.RenderImage(context.Background(), "100", "harbour at dusk"))
}

func TestSchedule_SetsStatusAndTime(t *testing.T) {
	f := newPostServiceFixture(nil)
	id := f.seed(t, &models.Post{Title: "T", Text: "B"})

	ok, err := f.svc.Schedule(context.Background(), id, time.Date(2024, 6, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600)))

	require.NoError(t, err)
	assert.True(t, ok)
	post, _ := f.repo.GetByID(context.Background(), id)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, "2024-06-01T08:30:00Z", post.ScheduledAt)
}

func TestSchedule_MissingPost(t *testing.T) {
	f := newPostServiceFixture(nil)

	ok, err := f.svc.Schedule(context.Background(), "nope", time.Now())

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublish_TextOnly(t *testing.T) {
	f := newPostServiceFixture(nil)
	id := f.seed(t, &models.Post{Title: "Porto", Text: "Port wine cellars"})
	f.tg.On("SendMessage", "@channel", "*Porto*\n\nPort wine cellars").Return(&transfer.TelegramMessage{MessageID: 42}, nil)
	f.history.On("Create", mock.MatchedBy(func(ph *models.PostingHistory) bool {
		return ph.PostID == id && ph.MessageID == "42" && ph.ErrorMessage == ""
	})).Return(int64(1), nil)

	post, err := f.svc.Publish(context.Background(), id)

	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, models.PostStatusPosted, post.Status)
	assert.Equal(t, "42", post.MessageID)
	assert.Equal(t, "2024-05-01T10:00:00Z", post.PostedAt)
	f.tg.AssertExpectations(t)
	f.history.AssertExpectations(t)
}

func TestPublish_TelegramImageUsesFileID(t *testing.T) {
	f := newPostServiceFixture(nil)
	id := f.seed(t, &models.Post{Title: "Porto", Text: "Bridges", ImageURL: "tg:file-1"})
	f.tg.On("SendPhoto", "@channel", Photo{Ref: "file-1"}, "*Porto*\n\nBridges").Return(&transfer.TelegramMessage{MessageID: 9}, nil)
	f.history.On("Create", mock.Anything).Return(int64(1), nil)

	post, err := f.svc.Publish(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "9", post.MessageID)
	f.tg.AssertExpectations(t)
}

func TestPublish_FailureIsRecorded(t *testing.T) {
	f := newPostServiceFixture(nil)
	id := f.seed(t, &models.Post{Title: "Porto", Text: "Bridges"})
	f.tg.On("SendMessage", "@channel", mock.Anything).Return(nil, &TelegramError{Method: "sendMessage", Code: 403, Description: "bot is not a member"})
	f.history.On("Create", mock.MatchedBy(func(ph *models.PostingHistory) bool {
		return ph.ErrorMessage != ""
	})).Return(int64(1), nil)

	_, err := f.svc.Publish(context.Background(), id)

	require.Error(t, err)
	var tgErr *TelegramError
	assert.True(t, errors.As(err, &tgErr))

	stored, _ := f.repo.GetByID(context.Background(), id)
	assert.Equal(t, models.PostStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "bot is not a member")
	f.history.AssertExpectations(t)
}

func TestPublish_AlreadyPosted(t *testing.T) {
	f := newPostServiceFixture(nil)
	id := f.seed(t, &models.Post{Title: "Porto", Text: "Bridges", Status: models.PostStatusPosted})

	post, err := f.svc.Publish(context.Background(), id)

	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.NotNil(t, post)
	f.tg.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestPublish_MissingPost(t *testing.T) {
	f := newPostServiceFixture(nil)

	post, err := f.svc.Publish(context.Background(), "nope")

	assert.NoError(t, err)
	assert.Nil(t, post)
}

func TestPublish_NoChannel(t *testing.T) {
	f := newPostServiceFixture(nil)
	f.svc.channelID = ""
	id := f.seed(t, &models.Post{Title: "Porto", Text: "Bridges"})

	_, err := f.svc.Publish(context.Background(), id)

	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestPublishText(t *testing.T) {
	assert.Equal(t, "body", PublishText(&models.Post{Text: "body"}))
	assert.Equal(t, "*T*\n\nbody", PublishText(&models.Post{Title: "T", Text: "body"}))
}
