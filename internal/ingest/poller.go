package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"tgfeed/internal/logging"
	"tgfeed/pkg/telegoapi"
)

const updateTimeout = 30 * time.Second

// Poller ingests channel posts received by long polling.
type Poller struct {
	updates     telegoapi.UpdatesAPI
	ingestor    *Ingestor
	ratelimiter ratelimit.Limiter
	log         zerolog.Logger
}

// NewPoller creates a poller. rps bounds processed updates per second.
func NewPoller(updates telegoapi.UpdatesAPI, ingestor *Ingestor, rps int) (*Poller, error) {
	if updates == nil {
		return nil, errors.New("telegram updates API cannot be nil")
	}
	if ingestor == nil {
		return nil, errors.New("ingestor cannot be nil")
	}
	if rps <= 0 {
		rps = 20
	}
	return &Poller{
		updates:     updates,
		ingestor:    ingestor,
		ratelimiter: ratelimit.New(rps),
		log:         logging.Component("poller"),
	}, nil
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for updates still being processed.
func (p *Poller) Run(ctx context.Context) error {
	updates, err := p.updates.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"channel_post", "edited_channel_post"},
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}
	p.log.Info().Msg("listening for channel posts")

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("context done, stopping update processing")
			wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				p.log.Info().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.processUpdate(ctx, update)
			}()
		}
	}
}

// processUpdate ingests the channel message of one update.
func (p *Poller) processUpdate(ctx context.Context, update telego.Update) {
	p.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
				Int("update_id", update.UpdateID).Msg("panic recovered in processUpdate")
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	var msg *telego.Message
	switch {
	case update.ChannelPost != nil:
		msg = update.ChannelPost
	case update.EditedChannelPost != nil:
		msg = update.EditedChannelPost
	default:
		p.log.Debug().Int("update_id", update.UpdateID).Msg("ignoring non channel update")
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		raw = nil
	}
	_ = p.ingestor.Ingest(ctx, *msg, raw)
}
