package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hearthchat/chat-history-service/internal/config"
)

const (
	collRooms    = "rooms"
	collUsers    = "users"
	collChatLogs = "chatlogs"
)

// Client wraps the Mongo client and database handle shared by the
// repositories.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to Mongo and verifies the connection within the
// configured timeout.
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Database returns the underlying database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// EnsureIndexes creates the indexes the repositories rely on. The
// unique index on chatlogs.roomId enforces the one-log-per-room
// invariant at the storage layer.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(collChatLogs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create chatlogs index: %w", err)
	}

	_, err = c.db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "externalUserId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	return nil
}

// Close disconnects from Mongo.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
