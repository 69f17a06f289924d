package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgIdentRE = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// NewPGPool builds a pgx pool and validates connectivity.
func NewPGPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresStore is a Store backed by the Supabase-compatible
// telegram_posts and telegram_channel_stats tables.
//
// The store owns the pool and closes it on Close.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema of the tables (default: "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRE.MatchString(schema) {
			return fmt.Errorf("database: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("database: nil pool")
	}
	st := &PostgresStore{pool: pool, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Close releases the pool.
func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// EnsureSchema creates the tables and indexes when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	posts := s.table(postsCollectionName)
	stats := s.table(statsCollectionName)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + posts + ` (
			channel_username text        NOT NULL,
			message_id       bigint      NOT NULL,
			posted_at        timestamptz NOT NULL,
			edited_at        timestamptz,
			text             text        NOT NULL DEFAULT '',
			permalink        text        NOT NULL DEFAULT '',
			media_group_id   text,
			media_refs       jsonb,
			raw              jsonb,
			ingested_at      timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (channel_username, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS telegram_posts_channel_posted_at_idx
			ON ` + posts + ` (channel_username, posted_at DESC)`,
		`CREATE TABLE IF NOT EXISTS ` + stats + ` (
			channel_username  text        PRIMARY KEY,
			subscribers_count bigint      NOT NULL,
			updated_at        timestamptz NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
