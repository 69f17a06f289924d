package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"tgfeed/config"
	"tgfeed/internal/locales"
	"tgfeed/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "tgfeed",
	Short:         "tgfeed - Telegram channel feed service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feed API and receive updates through the webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), false)
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Serve the feed API and receive updates by long polling",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), true)
	},
}

var refreshStatsCmd = &cobra.Command{
	Use:   "refresh-stats",
	Short: "Refresh subscriber counts of the configured channels once",
	RunE:  runRefreshStats,
}

func init() {
	rootCmd.AddCommand(serveCmd, pollCmd, refreshStatsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and initializes logging, Sentry and locales.
func setup() (*config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	format := cfg.LogFormat
	if format == "" && cfg.AppEnv == "development" {
		format = "console"
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: format})

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Debug:            cfg.Debug,
	}); err != nil {
		return nil, nil, fmt.Errorf("sentry.Init: %w", err)
	}

	if err := locales.Init("en"); err != nil {
		return nil, nil, fmt.Errorf("locales: %w", err)
	}
	return cfg, func() { sentry.Flush(2 * time.Second) }, nil
}

// run serves the API until ctx is cancelled; withPolling also starts the
// long-polling ingestion loop.
func run(ctx context.Context, withPolling bool) error {
	cfg, flush, err := setup()
	if err != nil {
		return err
	}
	defer flush()
	log := logging.Component("main")

	a, err := newApp(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	defer a.Close()

	refresher, err := a.newRefresher()
	if err != nil {
		return err
	}
	if refresher != nil {
		refresher.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			refresher.Stop(stopCtx)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router(!withPolling),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if withPolling {
		poller, err := a.newPoller()
		if err != nil {
			return err
		}
		go func() {
			if err := poller.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errCh:
		logging.CaptureError(log, err, "service failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("HTTP server shutdown")
	}
	log.Info().Msg("shutdown complete")
	return err
}

func runRefreshStats(cmd *cobra.Command, _ []string) error {
	cfg, flush, err := setup()
	if err != nil {
		return err
	}
	defer flush()

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	refresher, err := a.newRefresher()
	if err != nil {
		return err
	}
	if refresher == nil {
		return errors.New("no channels to refresh: set STATS_CHANNELS or TELEGRAM_CHANNEL_USERNAME")
	}
	live := refresher.RefreshAll(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d channel(s), %d from Telegram\n", len(cfg.StatsChannels), live)
	return nil
}
