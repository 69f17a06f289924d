package models

import "time"

// StatsSource tells where a subscriber count came from.
type StatsSource string

const (
	SourceStored StatsSource = "stored"
	SourceLive   StatsSource = "live"
)

// ChannelStats is the latest known subscriber count of a channel.
type ChannelStats struct {
	Channel          string    `bson:"channel_username"`
	SubscribersCount int64     `bson:"subscribers_count"`
	UpdatedAt        time.Time `bson:"updated_at"`
}
