// Package feed turns stored channel messages into the paginated list of
// logical posts served to clients.
package feed

import (
	"time"
)

// Post is one logical post: a singleton message or a whole album.
type Post struct {
	Channel    string    `json:"channel_username"`
	MessageID  int64     `json:"message_id"` // smallest member id
	PostedAt   time.Time `json:"posted_at"`
	Text       string    `json:"text"`
	Permalink  string    `json:"permalink"`
	Images     []string  `json:"images"`
	MessageIDs []int64   `json:"message_ids"`
	GroupID    string    `json:"group_id,omitempty"`
}

// Page is one slice of a channel feed.
type Page struct {
	Items      []Post     `json:"items"`
	NextCursor *time.Time `json:"-"`
}
