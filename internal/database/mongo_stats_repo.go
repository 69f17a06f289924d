package database

import (
	"context"
	"errors"
	"fmt"

	"tgfeed/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStatsRepository implements StatsRepository for MongoDB.
type MongoStatsRepository struct {
	collection *mongo.Collection
}

// NewMongoStatsRepository creates a new MongoDB stats repository.
func NewMongoStatsRepository(db *mongo.Database) *MongoStatsRepository {
	return &MongoStatsRepository{
		collection: db.Collection(statsCollectionName),
	}
}

// EnsureIndexes creates the lookup index on channel and update time.
func (r *MongoStatsRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel_username", Value: 1}, {Key: "updated_at", Value: -1}},
		Options: options.Index().SetName("channel_updated_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", statsCollectionName, err)
	}
	return nil
}

// LatestStats returns the most recently updated record of channel.
func (r *MongoStatsRepository) LatestStats(ctx context.Context, channel string) (*models.ChannelStats, error) {
	var stats models.ChannelStats
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	err := r.collection.FindOne(ctx, bson.M{"channel_username": channel}, opts).Decode(&stats)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to find stats for %s: %w", channel, err)
	}
	stats.UpdatedAt = stats.UpdatedAt.UTC()
	return &stats, nil
}

// UpsertStats stores the count as the channel's current record.
func (r *MongoStatsRepository) UpsertStats(ctx context.Context, stats models.ChannelStats) error {
	filter := bson.M{"channel_username": stats.Channel}
	update := bson.M{
		"$set": bson.M{
			"subscribers_count": stats.SubscribersCount,
			"updated_at":        stats.UpdatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert stats for %s: %w", stats.Channel, err)
	}
	return nil
}
