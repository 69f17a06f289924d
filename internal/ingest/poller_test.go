package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tgfeed/internal/database"
	"tgfeed/internal/database/models"
)

// MockUpdatesAPI is a mock implementing telegoapi.UpdatesAPI.
type MockUpdatesAPI struct {
	mock.Mock
}

func (m *MockUpdatesAPI) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error) {
	args := m.Called(ctx, params)
	if ch, ok := args.Get(0).(chan telego.Update); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPoller_IngestsChannelPosts(t *testing.T) {
	updates := make(chan telego.Update, 4)
	post := channelPost(1, "one")
	edited := channelPost(1, "one, edited")
	other := channelPost(2, "two")
	updates <- telego.Update{UpdateID: 1, ChannelPost: &post}
	updates <- telego.Update{UpdateID: 2, Message: &telego.Message{MessageID: 99}}
	updates <- telego.Update{UpdateID: 3, ChannelPost: &other}
	close(updates)

	api := new(MockUpdatesAPI)
	api.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(updates, nil)

	store := database.NewMemoryStore()
	p, err := NewPoller(api, newIngestor(t, store, nil), 100)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 2, store.Len())

	// an edit replaces the stored row
	updates2 := make(chan telego.Update, 1)
	updates2 <- telego.Update{UpdateID: 4, EditedChannelPost: &edited}
	close(updates2)
	api2 := new(MockUpdatesAPI)
	api2.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(updates2, nil)
	p2, err := NewPoller(api2, newIngestor(t, store, nil), 100)
	require.NoError(t, err)
	require.NoError(t, p2.Run(context.Background()))

	rows, err := store.ListPosts(context.Background(), database.PostQuery{Channel: "loycewear"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, r := range rows {
		if r.MessageID == 1 {
			assert.Equal(t, "one, edited", r.Text)
		}
	}
}

func TestPoller_StopsOnCancel(t *testing.T) {
	updates := make(chan telego.Update)
	api := new(MockUpdatesAPI)
	api.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(updates, nil)

	p, err := NewPoller(api, newIngestor(t, database.NewMemoryStore(), nil), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_StartError(t *testing.T) {
	api := new(MockUpdatesAPI)
	api.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(nil, errors.New("unauthorized"))

	p, err := NewPoller(api, newIngestor(t, database.NewMemoryStore(), nil), 1)
	require.NoError(t, err)
	assert.ErrorContains(t, p.Run(context.Background()), "unauthorized")
}

// panickingRepo panics on write to exercise the poller's recovery.
type panickingRepo struct{ database.PostRepository }

func (panickingRepo) UpsertPost(context.Context, *models.RawPost) error { panic("boom") }

func TestPoller_RecoversPanics(t *testing.T) {
	updates := make(chan telego.Update, 1)
	post := channelPost(1, "x")
	updates <- telego.Update{UpdateID: 1, ChannelPost: &post}
	close(updates)

	api := new(MockUpdatesAPI)
	api.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(updates, nil)

	p, err := NewPoller(api, newIngestor(t, panickingRepo{}, nil), 10)
	require.NoError(t, err)
	assert.NotPanics(t, func() { _ = p.Run(context.Background()) })
}

func TestNewPoller_Validation(t *testing.T) {
	_, err := NewPoller(nil, nil, 1)
	assert.Error(t, err)
	_, err = NewPoller(new(MockUpdatesAPI), nil, 1)
	assert.Error(t, err)
}
