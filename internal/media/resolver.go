package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tgfeed/internal/database/models"
	"tgfeed/internal/logging"
	"tgfeed/internal/metrics"
	"tgfeed/pkg/telegoapi"
)

const (
	defaultLookupTimeout = 10 * time.Second
	defaultParallelism   = 8
)

// errNoFilePath is returned when Telegram answers without a usable path.
var errNoFilePath = errors.New("file has no file_path")

// Options tunes a Resolver. Zero values select defaults.
type Options struct {
	// RPS caps external getFile calls per second; 0 disables the limiter.
	RPS int
	// LookupTimeout bounds one external lookup, independent of the caller.
	LookupTimeout time.Duration
	// Parallelism bounds concurrent lookups in ResolveAll.
	Parallelism int
}

// Resolver turns file ids into download URLs, consulting the cache first.
type Resolver struct {
	source      telegoapi.FileAPI
	cache       *Cache
	group       singleflight.Group
	breaker     *gobreaker.CircuitBreaker[string]
	limiter     ratelimit.Limiter
	timeout     time.Duration
	parallelism int
	log         zerolog.Logger
}

// NewResolver creates a resolver. A nil source disables resolution: every
// lookup reports absent.
func NewResolver(source telegoapi.FileAPI, cache *Cache, opts Options) *Resolver {
	if cache == nil {
		cache = NewCache(DefaultTTL)
	}
	r := &Resolver{
		source:      source,
		cache:       cache,
		timeout:     opts.LookupTimeout,
		parallelism: opts.Parallelism,
		log:         logging.Component("media"),
	}
	if r.timeout <= 0 {
		r.timeout = defaultLookupTimeout
	}
	if r.parallelism <= 0 {
		r.parallelism = defaultParallelism
	}
	if opts.RPS > 0 {
		r.limiter = ratelimit.New(opts.RPS)
	} else {
		r.limiter = ratelimit.NewUnlimited()
	}

	r.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "telegram-getfile",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A file without a path is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNoFilePath)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return r
}

// Cache returns the cache backing the resolver.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve returns the URL for fileID, or false when it cannot be resolved.
// Failures are never cached, so a later call retries.
func (r *Resolver) Resolve(ctx context.Context, fileID string) (string, bool) {
	if fileID == "" || r.source == nil {
		return "", false
	}
	if url, ok := r.cache.Get(fileID); ok {
		return url, true
	}

	// The lookup outlives an abandoned request so its result still lands in
	// the cache.
	ch := r.group.DoChan(fileID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.lookup(lctx, fileID)
	})

	select {
	case <-ctx.Done():
		return "", false
	case res := <-ch:
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	}
}

func (r *Resolver) lookup(ctx context.Context, fileID string) (string, error) {
	if url, ok := r.cache.peek(fileID); ok {
		return url, nil
	}

	r.limiter.Take()
	path, err := r.breaker.Execute(func() (string, error) {
		file, err := r.source.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
		if err != nil {
			return "", err
		}
		if file == nil || file.FilePath == "" {
			return "", errNoFilePath
		}
		return file.FilePath, nil
	})

	switch {
	case err == nil:
		metrics.MediaResolves.WithLabelValues("ok").Inc()
	case errors.Is(err, errNoFilePath):
		metrics.MediaResolves.WithLabelValues("not_found").Inc()
		r.log.Debug().Str("file_id", fileID).Msg("file has no path")
		return "", err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MediaResolves.WithLabelValues("breaker_open").Inc()
		return "", err
	default:
		metrics.MediaResolves.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Str("file_id", fileID).Msg("getFile failed")
		return "", fmt.Errorf("get file %s: %w", fileID, err)
	}

	url := r.source.FileDownloadURL(path)
	r.cache.Set(fileID, url)
	return url, nil
}

// ResolveAll resolves refs concurrently. The result keeps the order of refs
// and omits the ones that could not be resolved.
func (r *Resolver) ResolveAll(ctx context.Context, refs []models.MediaRef) []string {
	if len(refs) == 0 || r.source == nil {
		return []string{}
	}

	urls := make([]string, len(refs))
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, ref := range refs {
		g.Go(func() error {
			if url, ok := r.Resolve(ctx, ref.FileID); ok {
				urls[i] = url
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
