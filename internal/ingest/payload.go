// Package ingest stores channel messages delivered by Telegram, through the
// webhook or the long-polling loop.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"tgfeed/internal/channel"
	"tgfeed/internal/database/models"
)

// ErrInvalidMessage marks a message that cannot be stored.
var ErrInvalidMessage = errors.New("invalid channel message")

// Inbound is a channel message reduced to the fields the feed needs.
type Inbound struct {
	Channel   string
	MessageID int64
	PostedAt  time.Time
	EditedAt  *time.Time
	Text      string
	GroupID   string
	MediaRefs []models.MediaRef
}

// ParseOptions controls how messages are mapped to channels.
type ParseOptions struct {
	Normalizer channel.Normalizer
	// DefaultChannel is used when the chat has no public username.
	DefaultChannel string
	Now            func() time.Time
}

// ParseMessage validates msg and extracts an Inbound.
func ParseMessage(msg telego.Message, opts ParseOptions) (Inbound, error) {
	if msg.MessageID <= 0 {
		return Inbound{}, fmt.Errorf("%w: missing message_id", ErrInvalidMessage)
	}

	name := msg.Chat.Username
	if strings.TrimSpace(name) == "" {
		name = opts.DefaultChannel
	}
	ch, err := opts.Normalizer.Parse(name)
	if err != nil {
		return Inbound{}, fmt.Errorf("%w: chat %d has no usable channel name %q", ErrInvalidMessage, msg.Chat.ID, name)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	in := Inbound{
		Channel:   ch,
		MessageID: int64(msg.MessageID),
		Text:      msg.Text,
		GroupID:   msg.MediaGroupID,
		MediaRefs: models.MediaRefsFromMessage(msg),
	}
	if strings.TrimSpace(in.Text) == "" {
		in.Text = msg.Caption
	}
	if msg.Date > 0 {
		in.PostedAt = time.Unix(msg.Date, 0).UTC()
	} else {
		in.PostedAt = now().UTC()
	}
	if msg.EditDate > 0 {
		edited := time.Unix(msg.EditDate, 0).UTC()
		in.EditedAt = &edited
	}
	return in, nil
}

// RawPost converts the message into its stored row.
func (in Inbound) RawPost(raw []byte, ingestedAt time.Time) *models.RawPost {
	refs := in.MediaRefs
	if refs == nil {
		refs = []models.MediaRef{}
	}
	return &models.RawPost{
		Channel:    in.Channel,
		MessageID:  in.MessageID,
		PostedAt:   in.PostedAt,
		EditedAt:   in.EditedAt,
		Text:       in.Text,
		Permalink:  channel.Permalink(in.Channel, in.MessageID),
		MediaRefs:  refs,
		GroupID:    in.GroupID,
		Raw:        raw,
		IngestedAt: ingestedAt.UTC(),
	}
}
