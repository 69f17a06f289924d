package database

import (
	"context"
	"fmt"
	"time"

	"tgfeed/internal/logging"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB establishes a connection to MongoDB and pings it.
// It returns the MongoDB client, database object, and an error if connection fails.
func ConnectDB(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Decode(&result); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	l := logging.Component("database")
	l.Info().Str("database", database).Msg("connected to MongoDB")

	return client, client.Database(database), nil
}

// MongoStore is a Store backed by MongoDB collections.
type MongoStore struct {
	*MongoPostRepository
	*MongoStatsRepository
	client *mongo.Client
}

// NewMongoStore wraps the repositories of db. The store owns client and
// disconnects it on Close; client may be nil in tests.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		MongoPostRepository:  NewMongoPostRepository(db),
		MongoStatsRepository: NewMongoStatsRepository(db),
		client:               client,
	}
}

// EnsureIndexes creates the uniqueness and ordering indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if err := s.MongoPostRepository.EnsureIndexes(ctx); err != nil {
		return err
	}
	return s.MongoStatsRepository.EnsureIndexes(ctx)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}
