package models

import (
	"strconv"
	"time"
)

// Media kinds stored in MediaRef.Kind.
const (
	MediaPhoto    = "photo"
	MediaDocument = "document"
)

// MediaRef is an opaque Telegram file reference attached to a message.
type MediaRef struct {
	FileID       string `bson:"file_id" json:"file_id"`
	FileUniqueID string `bson:"file_unique_id,omitempty" json:"file_unique_id,omitempty"`
	Kind         string `bson:"kind" json:"kind"`
	Width        int    `bson:"width,omitempty" json:"width,omitempty"`
	Height       int    `bson:"height,omitempty" json:"height,omitempty"`
}

// RawPost is one physical channel message as persisted.
// (Channel, MessageID) is unique; a repeated ingestion overwrites the row.
type RawPost struct {
	Channel    string     `bson:"channel_username"`
	MessageID  int64      `bson:"message_id"`
	PostedAt   time.Time  `bson:"posted_at"`
	EditedAt   *time.Time `bson:"edited_at,omitempty"`
	Text       string     `bson:"text"`
	Permalink  string     `bson:"permalink"`
	MediaRefs  []MediaRef `bson:"media_refs"`
	GroupID    string     `bson:"group_id,omitempty"` // media_group_id for albums, empty for singletons
	Raw        []byte     `bson:"raw,omitempty"`      // original JSON payload
	IngestedAt time.Time  `bson:"ingested_at"`
}

// GroupKey returns the album grouping key of the row.
func (p RawPost) GroupKey() string {
	if p.GroupID != "" {
		return "album:" + p.GroupID
	}
	return "msg:" + strconv.FormatInt(p.MessageID, 10)
}
