package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers supported by the row store adapters.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	AppEnv    string
	Debug     bool
	Version   string
	LogLevel  string
	LogFormat string
	HTTPAddr  string

	BotToken        string
	DefaultChannel  string
	ChannelKeepCase bool
	WebhookSecret   string
	SentryDSN       string

	StoreDriver     string
	MongoDBURI      string
	MongoDBDatabase string
	DatabaseURL     string

	MediaCacheTTL   time.Duration
	MediaResolveRPS int

	FeedDefaultLimit int
	FeedMaxLimit     int
	FeedFanout       int
	FeedMaxRows      int

	StatsRefreshSchedule string
	StatsChannels        []string

	NATSURL     string
	NATSSubject string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Debug:     getEnvBool("DEBUG", false),
		Version:   getEnv("VERSION", "dev"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
		HTTPAddr:  getEnv("HTTP_ADDR", ":3000"),

		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		DefaultChannel:  getEnv("TELEGRAM_CHANNEL_USERNAME", "loycewear"),
		ChannelKeepCase: getEnvBool("CHANNEL_KEEP_CASE", false),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
		SentryDSN:       getEnv("SENTRY_DSN", ""),

		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", "tgfeed"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),

		StatsRefreshSchedule: getEnv("STATS_REFRESH_SCHEDULE", "@every 15m"),
		NATSURL:              getEnv("NATS_URL", ""),
		NATSSubject:          getEnv("NATS_SUBJECT", "tgfeed.posts"),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	var err error
	if cfg.MediaCacheTTL, err = getEnvDuration("MEDIA_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MediaResolveRPS, err = getEnvInt("MEDIA_RESOLVE_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.FeedDefaultLimit, err = getEnvInt("FEED_DEFAULT_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.FeedMaxLimit, err = getEnvInt("FEED_MAX_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.FeedFanout, err = getEnvInt("FEED_FANOUT", 16); err != nil {
		return nil, err
	}
	if cfg.FeedMaxRows, err = getEnvInt("FEED_MAX_ROWS", 800); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}

	cfg.StatsChannels = getEnvList("STATS_CHANNELS", nil)
	if len(cfg.StatsChannels) == 0 && cfg.DefaultChannel != "" {
		cfg.StatsChannels = []string{cfg.DefaultChannel}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and their combinations.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER=%s", StoreMongo)
		}
		if c.MongoDBDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	case StoreMemory:
		log.Println("Warning: STORE_DRIVER=memory keeps posts in process memory only.")
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q (want %s, %s or %s)", c.StoreDriver, StoreMongo, StorePostgres, StoreMemory)
	}

	if c.FeedMaxLimit <= 0 {
		return fmt.Errorf("FEED_MAX_LIMIT must be positive")
	}
	if c.FeedDefaultLimit <= 0 || c.FeedDefaultLimit > c.FeedMaxLimit {
		return fmt.Errorf("FEED_DEFAULT_LIMIT must be in 1..%d", c.FeedMaxLimit)
	}
	if c.FeedFanout <= 0 || c.FeedMaxRows <= 0 {
		return fmt.Errorf("FEED_FANOUT and FEED_MAX_ROWS must be positive")
	}
	if c.MediaCacheTTL <= 0 {
		return fmt.Errorf("MEDIA_CACHE_TTL must be positive")
	}

	if c.BotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN is not set. Media URLs and live stats are disabled.")
	}
	if c.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
