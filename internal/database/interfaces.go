package database

import (
	"context"
	"time"

	"tgfeed/internal/database/models"
)

// PostQuery selects raw rows of one channel, newest first.
type PostQuery struct {
	Channel string
	// Before, when set, keeps only rows with posted_at strictly earlier.
	Before *time.Time
	Limit  int
}

// PostRepository stores raw channel messages.
type PostRepository interface {
	// UpsertPost inserts or overwrites the row keyed by (channel, message_id).
	UpsertPost(ctx context.Context, post *models.RawPost) error
	// ListPosts returns rows ordered by posted_at descending.
	ListPosts(ctx context.Context, q PostQuery) ([]models.RawPost, error)
}

// StatsRepository stores the latest subscriber count per channel.
type StatsRepository interface {
	// LatestStats returns ErrStatsNotFound when the channel has no record.
	LatestStats(ctx context.Context, channel string) (*models.ChannelStats, error)
	UpsertStats(ctx context.Context, stats models.ChannelStats) error
}

// Store bundles the repositories of one backend.
type Store interface {
	PostRepository
	StatsRepository
	Close(ctx context.Context) error
}
