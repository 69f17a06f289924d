package database

import (
	"context"
	"fmt"
	"time"

	"tgfeed/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPostRepository implements PostRepository for MongoDB.
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoDB post repository.
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		collection: db.Collection(postsCollectionName),
	}
}

// EnsureIndexes creates the (channel, message_id) unique index and the
// (channel, posted_at) index used by ListPosts.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_username", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("channel_message_unique"),
		},
		{
			Keys:    bson.D{{Key: "channel_username", Value: 1}, {Key: "posted_at", Value: -1}},
			Options: options.Index().SetName("channel_posted_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", postsCollectionName, err)
	}
	return nil
}

// UpsertPost inserts the post or overwrites every field of the existing row
// with the same (channel, message_id). The filter fields are copied into
// inserted documents by the upsert itself.
func (r *MongoPostRepository) UpsertPost(ctx context.Context, post *models.RawPost) error {
	if post.IngestedAt.IsZero() {
		post.IngestedAt = time.Now().UTC()
	}
	filter := bson.M{
		"channel_username": post.Channel,
		"message_id":       post.MessageID,
	}
	update := bson.M{
		"$set": bson.M{
			"posted_at":   post.PostedAt,
			"edited_at":   post.EditedAt,
			"text":        post.Text,
			"permalink":   post.Permalink,
			"media_refs":  post.MediaRefs,
			"group_id":    post.GroupID,
			"raw":         post.Raw,
			"ingested_at": post.IngestedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert post %s/%d: %w", post.Channel, post.MessageID, err)
	}
	return nil
}

// ListPosts returns up to q.Limit rows of q.Channel, newest first.
func (r *MongoPostRepository) ListPosts(ctx context.Context, q PostQuery) ([]models.RawPost, error) {
	filter := bson.M{"channel_username": q.Channel}
	if q.Before != nil {
		filter["posted_at"] = bson.M{"$lt": q.Before.UTC()}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "posted_at", Value: -1}, {Key: "message_id", Value: -1}})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts for %s: %w", q.Channel, err)
	}
	defer cursor.Close(ctx)

	var posts []models.RawPost
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts for %s: %w", q.Channel, err)
	}
	for i := range posts {
		normalizeStoredPost(&posts[i])
	}
	return posts, nil
}
