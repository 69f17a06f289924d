package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tgfeed/internal/database"
	"tgfeed/internal/database/models"
)

// MockPostRepository is a mock implementing database.PostRepository.
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) UpsertPost(ctx context.Context, post *models.RawPost) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) ListPosts(ctx context.Context, q database.PostQuery) ([]models.RawPost, error) {
	args := m.Called(ctx, q)
	if rows, ok := args.Get(0).([]models.RawPost); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier is a mock implementing Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PostStored(ctx context.Context, post *models.RawPost) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

const postedUnix = 1714557600 // 2024-05-01T10:00:00Z

func channelPost(id int, text string) telego.Message {
	return telego.Message{
		MessageID: id,
		Date:      postedUnix,
		Chat:      telego.Chat{ID: -100123, Type: "channel", Username: "LoyceWear"},
		Text:      text,
	}
}

func newIngestor(t *testing.T, repo database.PostRepository, notifier Notifier) *Ingestor {
	t.Helper()
	ing, err := NewIngestor(repo, Options{DefaultChannel: "loycewear", Notifier: notifier})
	require.NoError(t, err)
	return ing
}

func TestParseMessage(t *testing.T) {
	t.Run("CaptionFallbackAndMedia", func(t *testing.T) {
		msg := channelPost(10, "")
		msg.Caption = "Spring drop"
		msg.MediaGroupID = "13579"
		msg.Photo = []telego.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "big", Width: 1280, Height: 1280},
		}
		msg.EditDate = postedUnix + 60

		in, err := ParseMessage(msg, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "loycewear", in.Channel)
		assert.Equal(t, int64(10), in.MessageID)
		assert.Equal(t, "Spring drop", in.Text)
		assert.Equal(t, "13579", in.GroupID)
		assert.Equal(t, time.Unix(postedUnix, 0).UTC(), in.PostedAt)
		require.NotNil(t, in.EditedAt)
		require.Len(t, in.MediaRefs, 1)
		assert.Equal(t, "big", in.MediaRefs[0].FileID)
	})

	t.Run("TextWinsOverCaption", func(t *testing.T) {
		msg := channelPost(1, "body")
		msg.Caption = "caption"
		in, err := ParseMessage(msg, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "body", in.Text)
	})

	t.Run("DefaultChannelAndClock", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		msg := telego.Message{MessageID: 5, Chat: telego.Chat{ID: -1001}}
		in, err := ParseMessage(msg, ParseOptions{
			DefaultChannel: "@fallback",
			Now:            func() time.Time { return now },
		})
		require.NoError(t, err)
		assert.Equal(t, "fallback", in.Channel)
		assert.Equal(t, now, in.PostedAt)
	})

	t.Run("Rejected", func(t *testing.T) {
		_, err := ParseMessage(telego.Message{Chat: telego.Chat{Username: "x"}}, ParseOptions{})
		assert.ErrorIs(t, err, ErrInvalidMessage)

		_, err = ParseMessage(telego.Message{MessageID: 1, Chat: telego.Chat{ID: 7}}, ParseOptions{})
		assert.ErrorIs(t, err, ErrInvalidMessage)

		_, err = ParseMessage(telego.Message{MessageID: 1, Chat: telego.Chat{Username: "bad name!"}}, ParseOptions{})
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})
}

func TestIngest_Idempotent(t *testing.T) {
	store := database.NewMemoryStore()
	ing := newIngestor(t, store, nil)
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third"} {
		msg := channelPost(42, text)
		msg.EditDate = int64(postedUnix + i)
		require.NoError(t, ing.Ingest(ctx, msg, nil))
	}

	assert.Equal(t, 1, store.Len())
	rows, err := store.ListPosts(ctx, database.PostQuery{Channel: "loycewear", Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "third", rows[0].Text)
	assert.Equal(t, "https://t.me/loycewear/42", rows[0].Permalink)
	assert.NotEmpty(t, rows[0].Raw)
}

func TestIngest_StoreErrorIsSwallowed(t *testing.T) {
	repo := new(MockPostRepository)
	repo.On("UpsertPost", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	notifier := new(MockNotifier)

	err := newIngestor(t, repo, notifier).Ingest(context.Background(), channelPost(1, "x"), nil)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertNotCalled(t, "PostStored", mock.Anything, mock.Anything)
}

func TestIngest_InvalidMessageNotStored(t *testing.T) {
	repo := new(MockPostRepository)

	err := newIngestor(t, repo, nil).Ingest(context.Background(), telego.Message{}, nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	repo.AssertNotCalled(t, "UpsertPost", mock.Anything, mock.Anything)
}

func TestIngest_NotifiesAfterWrite(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("PostStored", mock.Anything, mock.MatchedBy(func(p *models.RawPost) bool {
		return p.Channel == "loycewear" && p.MessageID == 7
	})).Return(errors.New("nats down")).Once()

	err := newIngestor(t, database.NewMemoryStore(), notifier).Ingest(context.Background(), channelPost(7, "x"), nil)
	assert.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestNewIngestor_NilRepository(t *testing.T) {
	_, err := NewIngestor(nil, Options{})
	assert.Error(t, err)
}

func TestWebhook(t *testing.T) {
	const update = `{"update_id":1,"channel_post":{"message_id":11,"date":1714557600,
		"chat":{"id":-100123,"type":"channel","username":"loycewear"},"caption":"Hello",
		"media_group_id":"g1","photo":[{"file_id":"p1","file_unique_id":"u1","width":800,"height":600}]}}`

	tests := []struct {
		name       string
		secret     string
		header     string
		body       string
		wantStatus int
		wantRows   int
	}{
		{"Stored", "", "", update, http.StatusOK, 1},
		{"SecretMatches", "s3cret", "s3cret", update, http.StatusOK, 1},
		{"SecretMismatch", "s3cret", "wrong", update, http.StatusUnauthorized, 0},
		{"SecretMissing", "s3cret", "", update, http.StatusUnauthorized, 0},
		{"Undecodable", "", "", `{"update_id":`, http.StatusBadRequest, 0},
		{"OtherUpdate", "", "", `{"update_id":2,"message":{"message_id":1}}`, http.StatusOK, 0},
		{"InvalidPostAcknowledged", "", "", `{"update_id":3,"channel_post":{"chat":{"id":1}}}`, http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := database.NewMemoryStore()
			h := NewWebhookHandler(newIngestor(t, store, nil), tt.secret)

			req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(SecretTokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRows, store.Len())
		})
	}
}

func TestWebhook_UnauthorizedIsLocalizedJSON(t *testing.T) {
	tests := []struct {
		name     string
		language string
		want     string
	}{
		{"English", "en-US,en;q=0.9", "Unauthorized"},
		{"Russian", "ru", "Нет доступа"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler(newIngestor(t, database.NewMemoryStore(), nil), "s3cret")

			req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{}`))
			req.Header.Set(SecretTokenHeader, "wrong")
			req.Header.Set("Accept-Language", tt.language)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}
}

func TestWebhook_KeepsRawPayload(t *testing.T) {
	store := database.NewMemoryStore()
	h := NewWebhookHandler(newIngestor(t, store, nil), "")

	body := `{"update_id":1,"edited_channel_post":{"message_id":3,"date":1714557600,"edit_date":1714557700,
		"chat":{"id":-1,"type":"channel","username":"loycewear"},"text":"edited"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rows, err := store.ListPosts(context.Background(), database.PostQuery{Channel: "loycewear"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0].Raw), `"edit_date":1714557700`)
	require.NotNil(t, rows[0].EditedAt)
}
