// Package mongo keeps the conversation archive in MongoDB collections
package mongo

import (
	"context"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	usersCollection         = "users"
)

// DB wraps the MongoDB client and archive database
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewDB connects to MongoDB and ensures the archive indexes exist
func NewDB(ctx context.Context, cfg config.MongoConfig) (*DB, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		clientOpts.SetConnectTimeout(cfg.Timeout)
		clientOpts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	db := &DB{client: client, db: client.Database(cfg.Database)}
	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return db, nil
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	_, err := d.db.Collection(conversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation index: %w", err)
	}

	_, err = d.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (d *DB) Close() error {
	if d.client != nil {
		return d.client.Disconnect(context.Background())
	}
	return nil
}

// Ping verifies database connectivity
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}
