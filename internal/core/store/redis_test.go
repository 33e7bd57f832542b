package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return client, server
}

func TestRedisRateLimitStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, server := newTestRedis(t)
	store := NewRedisRateLimitStore(client, "test:rl:", 2*time.Minute)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "alice-UA1", Attempts: 2, WindowStart: now, LastSeen: now,
	}))

	entry, err := store.GetRateLimit(ctx, "alice-UA1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, 2, entry.Attempts)
	require.True(t, now.Equal(entry.WindowStart))

	ttl := server.TTL("test:rl:alice-UA1")
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, 2*time.Minute)

	require.NoError(t, store.DeleteRateLimit(ctx, "alice-UA1"))
	missing, err := store.GetRateLimit(ctx, "alice-UA1")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRedisRateLimitStoreBlockedTTLCoversCooldown(t *testing.T) {
	ctx := context.Background()
	client, server := newTestRedis(t)
	store := NewRedisRateLimitStore(client, "", 2*time.Minute)

	now := time.Now().UTC()
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "bob", Attempts: 3, WindowStart: now, LastSeen: now,
		Blocked: true, BlockedUntil: now.Add(10 * time.Minute),
	}))

	require.Greater(t, server.TTL(defaultRedisKeyPrefix+"bob"), 10*time.Minute)
}

func TestRedisRateLimitStoreBlockedTTLUsesEntryClock(t *testing.T) {
	ctx := context.Background()
	client, server := newTestRedis(t)
	store := NewRedisRateLimitStore(client, "", 2*time.Minute)

	// The limiter's clock runs a year behind the wall clock.
	seen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "carol", Attempts: 3, WindowStart: seen, LastSeen: seen,
		Blocked: true, BlockedUntil: seen.Add(10 * time.Minute),
	}))
	require.Equal(t, 12*time.Minute, server.TTL(defaultRedisKeyPrefix+"carol"))

	// An expired block keeps only the idle TTL.
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "dave", Attempts: 3, WindowStart: seen, LastSeen: seen.Add(time.Hour),
		Blocked: true, BlockedUntil: seen.Add(10 * time.Minute),
	}))
	require.Equal(t, 2*time.Minute, server.TTL(defaultRedisKeyPrefix+"dave"))
}

func TestRedisRateLimitStoreSweep(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	store := NewRedisRateLimitStore(client, "test:rl:", time.Hour)

	now := time.Now().UTC()
	old := now.Add(-10 * time.Minute)
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{Identifier: "stale", Attempts: 1, WindowStart: old, LastSeen: old}))
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{Identifier: "held", Attempts: 3, WindowStart: old, LastSeen: old, Blocked: true, BlockedUntil: now.Add(time.Minute)}))
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{Identifier: "fresh", Attempts: 1, WindowStart: now, LastSeen: now}))

	removed, err := store.SweepRateLimits(ctx, now.Add(-2*time.Minute), now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	entries, err := store.ListRateLimits(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "fresh", entries[0].Identifier)
	require.Equal(t, "held", entries[1].Identifier)
}

func TestConnectRedis(t *testing.T) {
	_, server := newTestRedis(t)

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: server.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client, err = ConnectRedis(context.Background(), config.RedisConfig{Addr: "redis://" + server.Addr() + "/0"})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = ConnectRedis(context.Background(), config.RedisConfig{})
	require.Error(t, err)
}
