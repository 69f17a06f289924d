package database

import (
	"errors"

	"tgfeed/internal/database/models"
)

// ErrStatsNotFound is returned when no statistic is stored for a channel.
var ErrStatsNotFound = errors.New("channel stats not found")

const (
	postsCollectionName = "telegram_posts"
	statsCollectionName = "telegram_channel_stats"
)

// normalizeStoredPost fills fields missing from rows written by older
// importers that kept only the raw payload.
func normalizeStoredPost(p *models.RawPost) {
	p.PostedAt = p.PostedAt.UTC()
	if p.GroupID == "" {
		p.GroupID = models.GroupIDFromPayload(p.Raw)
	}
	if len(p.MediaRefs) == 0 {
		p.MediaRefs = models.MediaRefsFromPayload(p.Raw)
	}
}
