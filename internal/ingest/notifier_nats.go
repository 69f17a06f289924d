package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"tgfeed/internal/database/models"
)

// PostEvent is published for every stored row.
type PostEvent struct {
	Channel   string    `json:"channel_username"`
	MessageID int64     `json:"message_id"`
	PostedAt  time.Time `json:"posted_at"`
	GroupID   string    `json:"group_id,omitempty"`
	Edited    bool      `json:"edited"`
}

// Publisher is the part of a NATS connection the notifier uses.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSNotifier publishes PostEvents on <subject>.<channel>.
type NATSNotifier struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier connects to url.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("tgfeed"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	n := NewNotifier(nc, subject)
	n.conn = nc
	return n, nil
}

// NewNotifier wraps an existing publisher.
func NewNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

// PostStored publishes the event of post.
func (n *NATSNotifier) PostStored(_ context.Context, post *models.RawPost) error {
	data, err := json.Marshal(PostEvent{
		Channel:   post.Channel,
		MessageID: post.MessageID,
		PostedAt:  post.PostedAt,
		GroupID:   post.GroupID,
		Edited:    post.EditedAt != nil,
	})
	if err != nil {
		return fmt.Errorf("encode post event: %w", err)
	}
	subject := n.subject + "." + post.Channel
	if err := n.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection when the notifier owns one.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
