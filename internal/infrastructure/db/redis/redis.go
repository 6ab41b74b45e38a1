package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	clientName         = "security-center"
	defaultDialTimeout = 5 * time.Second
)

// Config holds the connection settings. CommandTimeout bounds every read and
// write on the socket; session reads sit on the login path.
type Config struct {
	Addr           string
	DB             int
	Password       string
	PoolSize       int
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

func (c Config) options() *redis.Options {
	opts := &redis.Options{
		Addr:        c.Addr,
		DB:          c.DB,
		Password:    c.Password,
		ClientName:  clientName,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if c.CommandTimeout > 0 {
		opts.ReadTimeout = c.CommandTimeout
		opts.WriteTimeout = c.CommandTimeout
	}
	return opts
}

// Connect opens the client and pings it once within the dial timeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := cfg.options()
	client := redis.NewClient(opts)

	if err := Ping(ctx, client, opts.DialTimeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Ping reports whether the server answers within timeout.
func Ping(ctx context.Context, client redis.UniversalClient, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
