package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"tgfeed/internal/channel"
	"tgfeed/internal/database"
	"tgfeed/internal/database/models"
	"tgfeed/internal/logging"
	"tgfeed/internal/metrics"
)

// Notifier is told about every row that was stored.
type Notifier interface {
	PostStored(ctx context.Context, post *models.RawPost) error
}

// Options configures an Ingestor.
type Options struct {
	Normalizer     channel.Normalizer
	DefaultChannel string
	// Notifier is optional.
	Notifier Notifier
}

// Ingestor upserts channel messages into the post repository.
type Ingestor struct {
	posts database.PostRepository
	opts  Options
	now   func() time.Time
	log   zerolog.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(posts database.PostRepository, opts Options) (*Ingestor, error) {
	if posts == nil {
		return nil, errors.New("post repository cannot be nil")
	}
	return &Ingestor{
		posts: posts,
		opts:  opts,
		now:   time.Now,
		log:   logging.Component("ingest"),
	}, nil
}

// Ingest stores msg keyed by (channel, message_id); replays overwrite the
// row. raw is the original JSON of the message; when nil msg is encoded.
//
// A message that cannot be parsed yields ErrInvalidMessage. A failed write
// is logged and reported but not returned, so transports always acknowledge
// and Telegram never redelivers in a loop.
func (i *Ingestor) Ingest(ctx context.Context, msg telego.Message, raw []byte) error {
	in, err := ParseMessage(msg, ParseOptions{
		Normalizer:     i.opts.Normalizer,
		DefaultChannel: i.opts.DefaultChannel,
		Now:            i.now,
	})
	if err != nil {
		metrics.IngestedMessages.WithLabelValues("rejected").Inc()
		i.log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Int("message_id", msg.MessageID).
			Msg("rejected channel message")
		return err
	}

	if len(raw) == 0 {
		if raw, err = json.Marshal(msg); err != nil {
			i.log.Warn().Err(err).Msg("failed to encode raw message")
			raw = nil
		}
	}

	post := in.RawPost(raw, i.now())
	log := i.log.With().Str("channel", post.Channel).Int64("message_id", post.MessageID).Logger()

	if err := i.posts.UpsertPost(ctx, post); err != nil {
		metrics.IngestedMessages.WithLabelValues("store_error").Inc()
		logging.CaptureError(log, fmt.Errorf("upsert post %s/%d: %w", post.Channel, post.MessageID, err),
			"failed to store channel message")
		return nil
	}
	metrics.IngestedMessages.WithLabelValues("stored").Inc()
	log.Debug().Str("group_id", post.GroupID).Int("media", len(post.MediaRefs)).Msg("channel message stored")

	if n := i.opts.Notifier; n != nil {
		if err := n.PostStored(ctx, post); err != nil {
			log.Warn().Err(err).Msg("failed to publish stored post")
		}
	}
	return nil
}
