package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"tgfeed/config"
	"tgfeed/internal/api"
	"tgfeed/internal/channel"
	"tgfeed/internal/database"
	"tgfeed/internal/feed"
	"tgfeed/internal/ingest"
	"tgfeed/internal/logging"
	"tgfeed/internal/media"
	"tgfeed/internal/stats"
)

// app owns the long lived dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	store    database.Store
	bot      *telego.Bot
	notifier *ingest.NATSNotifier
	ingestor *ingest.Ingestor
	stats    *stats.Resolver
	feed     *feed.Service
	log      zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logging.Component("app")}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.BotToken != "" {
		opt := telego.WithDefaultLogger(false, true)
		if cfg.Debug {
			opt = telego.WithDefaultDebugLogger()
		}
		if a.bot, err = telego.NewBot(cfg.BotToken, opt); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create telego bot: %w", err)
		}
	}

	if cfg.NATSURL != "" {
		if a.notifier, err = ingest.NewNATSNotifier(cfg.NATSURL, cfg.NATSSubject); err != nil {
			a.Close()
			return nil, err
		}
	}

	normalizer := channel.Normalizer{KeepCase: cfg.ChannelKeepCase}
	opts := ingest.Options{Normalizer: normalizer, DefaultChannel: cfg.DefaultChannel}
	if a.notifier != nil {
		opts.Notifier = a.notifier
	}
	if a.ingestor, err = ingest.NewIngestor(store, opts); err != nil {
		a.Close()
		return nil, err
	}

	// A nil *telego.Bot must not end up inside the interfaces below.
	var resolver *media.Resolver
	var live stats.LiveCounter
	if a.bot != nil {
		resolver = media.NewResolver(a.bot, media.NewCache(cfg.MediaCacheTTL), media.Options{RPS: cfg.MediaResolveRPS})
		if live, err = stats.NewTelegramCounter(a.bot); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		resolver = media.NewResolver(nil, media.NewCache(cfg.MediaCacheTTL), media.Options{})
	}

	a.stats = stats.NewResolver(store, live)
	a.feed = feed.NewService(store, resolver, feed.Options{
		DefaultLimit: cfg.FeedDefaultLimit,
		MaxLimit:     cfg.FeedMaxLimit,
		Fanout:       cfg.FeedFanout,
		MaxRows:      cfg.FeedMaxRows,
	})
	go a.purgeMediaCache(ctx, resolver.Cache())
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := database.NewPGPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store, err := database.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case config.StoreMemory:
		return database.NewMemoryStore(), nil
	default:
		client, db, err := database.ConnectDB(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
		if err != nil {
			return nil, err
		}
		store := database.NewMongoStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	}
}

// purgeMediaCache drops expired media URLs once per TTL.
func (a *app) purgeMediaCache(ctx context.Context, cache *media.Cache) {
	ticker := time.NewTicker(cache.TTL())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Purge(); n > 0 {
				a.log.Debug().Int("removed", n).Int("left", cache.Len()).Msg("media cache purged")
			}
		}
	}
}

func (a *app) router(withWebhook bool) http.Handler {
	deps := api.Deps{
		Feed:               a.feed,
		Stats:              a.stats,
		Normalizer:         channel.Normalizer{KeepCase: a.cfg.ChannelKeepCase},
		DefaultChannel:     a.cfg.DefaultChannel,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
	}
	if withWebhook {
		deps.Webhook = ingest.NewWebhookHandler(a.ingestor, a.cfg.WebhookSecret)
	}
	return api.NewServer(deps).Router()
}

func (a *app) newPoller() (*ingest.Poller, error) {
	if a.bot == nil {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required for long polling")
	}
	return ingest.NewPoller(a.bot, a.ingestor, 20)
}

// newRefresher returns nil when no channels are configured.
func (a *app) newRefresher() (*stats.Refresher, error) {
	if len(a.cfg.StatsChannels) == 0 {
		return nil, nil
	}
	normalizer := channel.Normalizer{KeepCase: a.cfg.ChannelKeepCase}
	channels := make([]string, 0, len(a.cfg.StatsChannels))
	for _, name := range a.cfg.StatsChannels {
		ch, err := normalizer.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("invalid STATS_CHANNELS entry %q: %w", name, err)
		}
		channels = append(channels, ch)
	}
	return stats.NewRefresher(a.stats, a.cfg.StatsRefreshSchedule, channels)
}

// Close releases the store and the NATS connection.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			logging.CaptureError(a.log, err, "failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
