package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tgfeed/internal/database/models"
	"tgfeed/internal/logging"
)

const refreshTimeout = 30 * time.Second

// Refresher periodically runs the resolver for a fixed set of channels so
// the stored count stays close to the live one.
type Refresher struct {
	resolver *Resolver
	channels []string
	cron     *cron.Cron
	log      zerolog.Logger
}

// NewRefresher schedules refreshes with a cron spec such as "@every 15m".
func NewRefresher(resolver *Resolver, schedule string, channels []string) (*Refresher, error) {
	r := &Refresher{
		resolver: resolver,
		channels: channels,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		log: logging.Component("stats-refresher"),
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		r.RefreshAll(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid stats refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the schedule in the background.
func (r *Refresher) Start() {
	r.log.Info().Strs("channels", r.channels).Msg("stats refresher started")
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh or ctx.
func (r *Refresher) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RefreshAll resolves every configured channel once and returns how many
// were answered by the live source.
func (r *Refresher) RefreshAll(ctx context.Context) int {
	live := 0
	for _, ch := range r.channels {
		res, err := r.resolver.GetStats(ctx, ch)
		if err != nil {
			r.log.Warn().Err(err).Str("channel", ch).Msg("stats refresh aborted")
			return live
		}
		ev := r.log.Debug().Str("channel", ch).Str("source", string(res.Source))
		if res.Count != nil {
			ev = ev.Int64("count", *res.Count)
		}
		ev.Msg("stats refreshed")
		if res.Source == models.SourceLive {
			live++
		}
	}
	return live
}
