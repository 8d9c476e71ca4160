// Package mongodb wraps the MongoDB driver client.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	driveropts "go.mongodb.org/mongo-driver/mongo/options"

	mongoopts "github.com/kart-io/ragserve/pkg/options/mongodb"
)

// Client wraps mongo.Client with a default database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *mongoopts.Options
}

// New creates a new MongoDB client and verifies the connection with a ping.
func New(ctx context.Context, opts *mongoopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options is nil")
	}

	clientOpts := driveropts.Client().ApplyURI(opts.URL)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(opts.Database),
		opts:     opts,
	}, nil
}

// Ping checks if the connection to MongoDB is alive.
func (c *Client) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("client is nil")
	}
	return c.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection gracefully.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Database returns the default database.
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Collection returns a collection from the default database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Raw returns the underlying mongo.Client.
func (c *Client) Raw() *mongo.Client {
	return c.client
}
