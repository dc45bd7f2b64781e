// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections used by the stores.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns a
// Client bound to the given database name.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// UsersCollection returns the users collection (one document per account,
// keyed by safe email).
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// UserConversationsCollection returns the per-user conversation lists (one
// document per user holding the conversations array).
func (c *Client) UserConversationsCollection() *mongo.Collection {
	return c.db.Collection("user_conversations")
}

// ConversationMessagesCollection returns the per-conversation message logs
// (one document per conversation holding the messages array).
func (c *Client) ConversationMessagesCollection() *mongo.Collection {
	return c.db.Collection("conversation_messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// users: unique raw email, plus the name field used by prefix search
	usersIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"email": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: map[string]int{"first_name": 1, "last_name": 1},
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, usersIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// user_conversations: entries are looked up by the embedded conversation
	// id when updating latest_message summaries
	convIndex := mongo.IndexModel{
		Keys: map[string]int{"conversations.id": 1},
	}
	if _, err := c.UserConversationsCollection().Indexes().CreateOne(ctx, convIndex); err != nil {
		return fmt.Errorf("failed to create user_conversations index: %w", err)
	}

	return nil
}
