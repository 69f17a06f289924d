package stats

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tgfeed/internal/database"
	"tgfeed/internal/database/models"
	"tgfeed/internal/logging"
	"tgfeed/internal/metrics"
)

// Result is the answer of one stats lookup. Count, UpdatedAt and Source are
// unset when nothing is known about the channel.
type Result struct {
	Channel   string
	Count     *int64
	UpdatedAt *time.Time
	Source    models.StatsSource
}

// Resolver combines the live counter and the stored value.
type Resolver struct {
	repo database.StatsRepository
	live LiveCounter
	now  func() time.Time
	log  zerolog.Logger
}

// NewResolver creates a resolver. live may be nil when no bot token is
// configured; the stored value is then the only source.
func NewResolver(repo database.StatsRepository, live LiveCounter) *Resolver {
	return &Resolver{
		repo: repo,
		live: live,
		now:  time.Now,
		log:  logging.Component("stats"),
	}
}

// GetStats returns the freshest count it can get. A successful live lookup
// wins and is written back; otherwise the stored value is returned. Failures
// are logged, never returned, except for a cancelled context.
func (r *Resolver) GetStats(ctx context.Context, channel string) (Result, error) {
	var strategies []Strategy
	if r.live != nil {
		strategies = append(strategies, Strategy{Name: models.SourceLive, Fetch: r.fetchLive})
	}
	strategies = append(strategies, Strategy{Name: models.SourceStored, Fetch: r.fetchStored})

	st, source, err := FirstSuccess(ctx, channel, strategies...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		r.log.Debug().Err(err).Str("channel", channel).Msg("no subscriber count")
		metrics.StatsResults.WithLabelValues("none").Inc()
		return Result{Channel: channel}, nil
	}

	metrics.StatsResults.WithLabelValues(string(source)).Inc()
	count, updated := st.SubscribersCount, st.UpdatedAt
	return Result{Channel: channel, Count: &count, UpdatedAt: &updated, Source: source}, nil
}

func (r *Resolver) fetchLive(ctx context.Context, channel string) (models.ChannelStats, error) {
	count, err := r.live.MemberCount(ctx, channel)
	if err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("live member count failed")
		return models.ChannelStats{}, err
	}
	st := models.ChannelStats{Channel: channel, SubscribersCount: count, UpdatedAt: r.now().UTC()}
	if err := r.repo.UpsertStats(ctx, st); err != nil {
		r.log.Error().Err(err).Str("channel", channel).Msg("failed to store live member count")
	}
	return st, nil
}

func (r *Resolver) fetchStored(ctx context.Context, channel string) (models.ChannelStats, error) {
	st, err := r.repo.LatestStats(ctx, channel)
	if err != nil {
		if !errors.Is(err, database.ErrStatsNotFound) {
			r.log.Error().Err(err).Str("channel", channel).Msg("failed to read stored member count")
		}
		return models.ChannelStats{}, err
	}
	return *st, nil
}
