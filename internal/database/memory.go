package database

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"tgfeed/internal/database/models"
)

type postKey struct {
	channel string
	id      int64
}

// MemoryStore keeps rows in process memory. It backs local runs without a
// database and the package tests of the services.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[postKey]models.RawPost
	stats map[string]models.ChannelStats
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts: make(map[postKey]models.RawPost),
		stats: make(map[string]models.ChannelStats),
	}
}

func (s *MemoryStore) UpsertPost(_ context.Context, post *models.RawPost) error {
	p := *post
	p.MediaRefs = slices.Clone(post.MediaRefs)
	p.Raw = slices.Clone(post.Raw)
	s.mu.Lock()
	s.posts[postKey{p.Channel, p.MessageID}] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListPosts(_ context.Context, q PostQuery) ([]models.RawPost, error) {
	s.mu.RLock()
	var out []models.RawPost
	for k, p := range s.posts {
		if k.channel != q.Channel {
			continue
		}
		if q.Before != nil && !p.PostedAt.Before(*q.Before) {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.RawPost) int {
		if c := b.PostedAt.Compare(a.PostedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.MessageID, a.MessageID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		normalizeStoredPost(&out[i])
	}
	return out, nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

func (s *MemoryStore) LatestStats(_ context.Context, channel string) (*models.ChannelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[channel]
	if !ok {
		return nil, ErrStatsNotFound
	}
	return &st, nil
}

func (s *MemoryStore) UpsertStats(_ context.Context, stats models.ChannelStats) error {
	s.mu.Lock()
	s.stats[stats.Channel] = stats
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
