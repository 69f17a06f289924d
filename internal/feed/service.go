package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tgfeed/internal/database"
	"tgfeed/internal/database/models"
	"tgfeed/internal/logging"
	"tgfeed/internal/metrics"
)

// MediaResolver materializes media references into URLs.
type MediaResolver interface {
	ResolveAll(ctx context.Context, refs []models.MediaRef) []string
}

// Options bounds page sizes and the raw row window.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// Fanout is how many raw rows are read per requested post.
	Fanout int
	// MaxRows caps the raw rows read for one page.
	MaxRows int
}

// DefaultOptions mirrors the documented API limits.
func DefaultOptions() Options {
	return Options{DefaultLimit: 20, MaxLimit: 50, Fanout: 16, MaxRows: 800}
}

// Service assembles feed pages.
type Service struct {
	posts    database.PostRepository
	resolver MediaResolver
	opts     Options
	log      zerolog.Logger
}

// NewService creates a feed service. Zero option fields take defaults.
func NewService(posts database.PostRepository, resolver MediaResolver, opts Options) *Service {
	def := DefaultOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = def.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = def.MaxLimit
	}
	if opts.Fanout <= 0 {
		opts.Fanout = def.Fanout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = def.MaxRows
	}
	return &Service{
		posts:    posts,
		resolver: resolver,
		opts:     opts,
		log:      logging.Component("feed"),
	}
}

// ClampLimit applies the default and the maximum page size.
func (s *Service) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	return min(limit, s.opts.MaxLimit)
}

// GetPage returns up to limit posts of channel older than cursor, newest
// first.
//
// Rows are read in a bounded window of limit*Fanout rows. An album cut by
// the window edge is served in part, and a page may hold fewer than limit
// posts although older ones exist. Both are accepted.
//
// The next cursor is the earliest posted_at among all member rows on the
// page, so an album whose members span a range of times is never served
// again. A post that falls inside that range but did not fit on the page
// is skipped.
func (s *Service) GetPage(ctx context.Context, channel string, limit int, cursor *time.Time) (Page, error) {
	limit = s.ClampLimit(limit)
	window := min(limit*s.opts.Fanout, s.opts.MaxRows)

	rows, err := s.posts.ListPosts(ctx, database.PostQuery{
		Channel: channel,
		Before:  cursor,
		Limit:   window,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list posts for %s: %w", channel, err)
	}
	metrics.FeedRowsFetched.Observe(float64(len(rows)))

	groups := GroupRows(rows)
	if len(groups) > limit {
		groups = groups[:limit]
	}

	items := make([]Post, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, grp := range groups {
		g.Go(func() error {
			var images []string
			if s.resolver != nil {
				images = s.resolver.ResolveAll(gctx, grp.MediaRefs())
			}
			items[i] = grp.Post(images)
			return nil
		})
	}
	_ = g.Wait()

	page := Page{Items: items}
	if len(items) == limit {
		next := nextCursor(groups)
		page.NextCursor = &next
	}

	s.log.Debug().Str("channel", channel).Int("rows", len(rows)).
		Int("posts", len(items)).Msg("feed page assembled")
	return page, nil
}

func nextCursor(groups []Group) time.Time {
	next := groups[0].EarliestAt()
	for _, g := range groups[1:] {
		if at := g.EarliestAt(); at.Before(next) {
			next = at
		}
	}
	return next
}
