package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	appName               = "security-center"
	defaultConnectTimeout = 10 * time.Second
)

// Config holds the connection settings. Accounts and identity links live in
// the same database.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

func (c Config) clientOptions() *options.ClientOptions {
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return options.Client().
		ApplyURI(c.URI).
		SetAppName(appName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
}

// Connect opens the client and returns it with the configured database once
// the database answers a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	opts := cfg.clientOptions()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	db := client.Database(cfg.Database)
	pingCtx, cancel := context.WithTimeout(ctx, *opts.ConnectTimeout)
	defer cancel()
	if err := Ping(pingCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// Ping checks that the server answers and the database accepts commands.
func Ping(ctx context.Context, db *mongo.Database) error {
	if err := db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	if err := db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return fmt.Errorf("mongo ping %s: %w", db.Name(), err)
	}
	return nil
}
