package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/firefly/security-center/internal/core/ports"
)

// startRedis runs a throwaway Redis container. Set INTEGRATION=1 to enable.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container backed tests")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := Connect(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSessionCache_RoundTrip(t *testing.T) {
	client := startRedis(t)
	cache := NewSessionCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "session:id:a", []byte(`{"session_id":"a"}`), time.Minute))

	got, err := cache.Get(ctx, "session:id:a")
	require.NoError(t, err)
	require.JSONEq(t, `{"session_id":"a"}`, string(got))

	ttl, err := client.TTL(ctx, "session:id:a").Result()
	require.NoError(t, err)
	require.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 2)

	require.NoError(t, cache.Evict(ctx, "session:id:a"))
	_, err = cache.Get(ctx, "session:id:a")
	require.True(t, errors.Is(err, ports.ErrCacheMiss))
	require.NoError(t, cache.Evict(ctx, "session:id:a"))
}

func TestSessionCache_EvictPrefix(t *testing.T) {
	client := startRedis(t)
	cache := NewSessionCache(client)
	ctx := context.Background()

	for i := 0; i < 450; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("session:party:p1:%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, cache.Put(ctx, "session:party:p2", []byte("keep"), time.Minute))

	require.NoError(t, cache.EvictPrefix(ctx, "session:party:p1"))

	n, err := client.Exists(ctx, "session:party:p1:0", "session:party:p1:449").Result()
	require.NoError(t, err)
	require.Zero(t, n)
	got, err := cache.Get(ctx, "session:party:p2")
	require.NoError(t, err)
	require.Equal(t, "keep", string(got))
}

func TestRevocationList(t *testing.T) {
	client := startRedis(t)
	list := NewRevocationList(client)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-2", time.Now().Add(-time.Hour)))
	ttl, err := client.TTL(ctx, "revoked:jti-2").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}

func TestConfigOptions(t *testing.T) {
	opts := Config{Addr: "cache:6379", PoolSize: 20, CommandTimeout: time.Second}.options()
	require.Equal(t, "security-center", opts.ClientName)
	require.Equal(t, 20, opts.PoolSize)
	require.Equal(t, defaultDialTimeout, opts.DialTimeout)
	require.Equal(t, time.Second, opts.ReadTimeout)
	require.Equal(t, time.Second, opts.WriteTimeout)

	opts = Config{Addr: "cache:6379"}.options()
	require.Zero(t, opts.ReadTimeout)
}

func TestPing(t *testing.T) {
	client := startRedis(t)
	require.NoError(t, Ping(context.Background(), client, time.Second))
}
