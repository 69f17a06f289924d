package database

import (
	"context"
	"errors"
	"fmt"

	"tgfeed/internal/database/models"

	"github.com/jackc/pgx/v5"
)

// LatestStats returns the most recently updated record of channel.
func (s *PostgresStore) LatestStats(ctx context.Context, channel string) (*models.ChannelStats, error) {
	var st models.ChannelStats
	err := s.pool.QueryRow(ctx,
		`SELECT channel_username, subscribers_count, updated_at
		   FROM `+s.table(statsCollectionName)+`
		  WHERE channel_username = $1
		  ORDER BY updated_at DESC
		  LIMIT 1`,
		channel,
	).Scan(&st.Channel, &st.SubscribersCount, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to query stats for %s: %w", channel, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// UpsertStats stores the count as the channel's current record.
func (s *PostgresStore) UpsertStats(ctx context.Context, stats models.ChannelStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table(statsCollectionName)+` (channel_username, subscribers_count, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (channel_username) DO UPDATE SET
		     subscribers_count = EXCLUDED.subscribers_count,
		     updated_at        = EXCLUDED.updated_at`,
		stats.Channel, stats.SubscribersCount, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stats for %s: %w", stats.Channel, err)
	}
	return nil
}
