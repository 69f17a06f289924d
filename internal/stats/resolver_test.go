package stats

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

// MockLiveCounter is a mock implementing LiveCounter.
type MockLiveCounter struct {
	mock.Mock
}

func (m *MockLiveCounter) MemberCount(ctx context.Context, channel string) (int64, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(int64), args.Error(1)
}

// MockStatsRepository is a mock implementing database.StatsRepository.
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) LatestStats(ctx context.Context, channel string) (*models.ChannelStats, error) {
	args := m.Called(ctx, channel)
	if st, ok := args.Get(0).(*models.ChannelStats); ok {
		return st, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStatsRepository) UpsertStats(ctx context.Context, st models.ChannelStats) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

var storedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestGetStats_LiveFailsFallsBackToStored(t *testing.T) {
	store := database.NewMemoryStore()
	require.NoError(t, store.UpsertStats(context.Background(), models.ChannelStats{
		Channel: "loycewear", SubscribersCount: 120, UpdatedAt: storedAt,
	}))
	live := new(MockLiveCounter)
	live.On("MemberCount", mock.Anything, "loycewear").Return(int64(0), errors.New("Bad Request: chat not found"))

	res, err := NewResolver(store, live).GetStats(context.Background(), "loycewear")
	require.NoError(t, err)

	require.NotNil(t, res.Count)
	assert.Equal(t, int64(120), *res.Count)
	assert.Equal(t, models.SourceStored, res.Source)
	assert.Equal(t, storedAt, *res.UpdatedAt)
}

func TestGetStats_LiveWinsAndIsWrittenBack(t *testing.T) {
	store := database.NewMemoryStore()
	require.NoError(t, store.UpsertStats(context.Background(), models.ChannelStats{
		Channel: "loycewear", SubscribersCount: 120, UpdatedAt: storedAt,
	}))
	live := new(MockLiveCounter)
	live.On("MemberCount", mock.Anything, "loycewear").Return(int64(130), nil)

	r := NewResolver(store, live)
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	res, err := r.GetStats(context.Background(), "loycewear")
	require.NoError(t, err)
	assert.Equal(t, int64(130), *res.Count)
	assert.Equal(t, models.SourceLive, res.Source)
	assert.Equal(t, now, *res.UpdatedAt)

	st, err := store.LatestStats(context.Background(), "loycewear")
	require.NoError(t, err)
	assert.Equal(t, int64(130), st.SubscribersCount)
	assert.Equal(t, now, st.UpdatedAt)
}

func TestGetStats_NothingKnown(t *testing.T) {
	res, err := NewResolver(database.NewMemoryStore(), nil).GetStats(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, "empty", res.Channel)
	assert.Nil(t, res.Count)
	assert.Nil(t, res.UpdatedAt)
	assert.Empty(t, res.Source)
}

func TestGetStats_NoLiveSourceUsesStored(t *testing.T) {
	repo := new(MockStatsRepository)
	repo.On("LatestStats", mock.Anything, "c").
		Return(&models.ChannelStats{Channel: "c", SubscribersCount: 7, UpdatedAt: storedAt}, nil)

	res, err := NewResolver(repo, nil).GetStats(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, int64(7), *res.Count)
	assert.Equal(t, models.SourceStored, res.Source)
	repo.AssertNotCalled(t, "UpsertStats", mock.Anything, mock.Anything)
}

func TestGetStats_StoreFailuresAreNotFatal(t *testing.T) {
	t.Run("ReadFailsLiveSucceeds", func(t *testing.T) {
		repo := new(MockStatsRepository)
		repo.On("LatestStats", mock.Anything, "c").Return(nil, errors.New("db down")).Maybe()
		repo.On("UpsertStats", mock.Anything, mock.Anything).Return(nil)
		live := new(MockLiveCounter)
		live.On("MemberCount", mock.Anything, "c").Return(int64(55), nil)

		res, err := NewResolver(repo, live).GetStats(context.Background(), "c")
		require.NoError(t, err)
		assert.Equal(t, int64(55), *res.Count)
		assert.Equal(t, models.SourceLive, res.Source)
	})

	t.Run("WriteBackFails", func(t *testing.T) {
		repo := new(MockStatsRepository)
		repo.On("UpsertStats", mock.Anything, mock.Anything).Return(errors.New("read only"))
		live := new(MockLiveCounter)
		live.On("MemberCount", mock.Anything, "c").Return(int64(9), nil)

		res, err := NewResolver(repo, live).GetStats(context.Background(), "c")
		require.NoError(t, err)
		assert.Equal(t, int64(9), *res.Count)
		assert.Equal(t, models.SourceLive, res.Source)
		repo.AssertExpectations(t)
	})

	t.Run("BothFail", func(t *testing.T) {
		repo := new(MockStatsRepository)
		repo.On("LatestStats", mock.Anything, "c").Return(nil, errors.New("db down"))
		live := new(MockLiveCounter)
		live.On("MemberCount", mock.Anything, "c").Return(int64(0), errors.New("timeout"))

		res, err := NewResolver(repo, live).GetStats(context.Background(), "c")
		require.NoError(t, err)
		assert.Nil(t, res.Count)
	})
}

func TestGetStats_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(database.NewMemoryStore(), nil).GetStats(ctx, "c")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstSuccess(t *testing.T) {
	failing := Strategy{Name: "a", Fetch: func(context.Context, string) (models.ChannelStats, error) {
		return models.ChannelStats{}, errors.New("nope")
	}}
	ok := Strategy{Name: "b", Fetch: func(_ context.Context, ch string) (models.ChannelStats, error) {
		return models.ChannelStats{Channel: ch, SubscribersCount: 3}, nil
	}}

	st, name, err := FirstSuccess(context.Background(), "x", failing, ok)
	require.NoError(t, err)
	assert.Equal(t, models.StatsSource("b"), name)
	assert.Equal(t, int64(3), st.SubscribersCount)

	_, _, err = FirstSuccess(context.Background(), "x", failing)
	assert.ErrorIs(t, err, ErrNoStats)
	assert.ErrorContains(t, err, "nope")
}

// MockChatAPI is a mock implementing telegoapi.ChatAPI.
type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) GetChatMemberCount(ctx context.Context, params *telego.GetChatMemberCountParams) (*int, error) {
	args := m.Called(ctx, params)
	if n, ok := args.Get(0).(*int); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTelegramCounter(t *testing.T) {
	_, err := NewTelegramCounter(nil)
	assert.Error(t, err)

	n := 4200
	api := new(MockChatAPI)
	api.On("GetChatMemberCount", mock.Anything, mock.MatchedBy(func(p *telego.GetChatMemberCountParams) bool {
		return p.ChatID.Username == "@loycewear"
	})).Return(&n, nil)
	api.On("GetChatMemberCount", mock.Anything, mock.Anything).Return(nil, errors.New("chat not found"))

	c, err := NewTelegramCounter(api)
	require.NoError(t, err)

	got, err := c.MemberCount(context.Background(), "loycewear")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), got)

	_, err = c.MemberCount(context.Background(), "missing")
	assert.ErrorContains(t, err, "chat not found")
}

func TestRefresher(t *testing.T) {
	store := database.NewMemoryStore()
	live := new(MockLiveCounter)
	live.On("MemberCount", mock.Anything, "a").Return(int64(10), nil)
	live.On("MemberCount", mock.Anything, "b").Return(int64(0), errors.New("forbidden"))

	r, err := NewRefresher(NewResolver(store, live), "@every 1h", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, r.RefreshAll(context.Background()))
	st, err := store.LatestStats(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.SubscribersCount)

	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)

	_, err = NewRefresher(NewResolver(store, live), "not a schedule", nil)
	assert.Error(t, err)
}
