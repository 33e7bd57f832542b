package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
)

const defaultRedisKeyPrefix = "rankshop:ratelimit:"

// RedisRateLimitStore keeps rate limit entries in Redis so several service
// instances share one view of each client.
type RedisRateLimitStore struct {
	client *redis.Client
	prefix string
	// TTL bounds how long an idle entry survives without a sweep.
	ttl time.Duration
}

// ConnectRedis builds a client from a redis:// URL or a host:port address.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}

	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisRateLimitStore wraps client. ttl is normally twice the window.
func NewRedisRateLimitStore(client *redis.Client, prefix string, ttl time.Duration) *RedisRateLimitStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisKeyPrefix
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisRateLimitStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisRateLimitStore) key(identifier string) string {
	return s.prefix + identifier
}

func (s *RedisRateLimitStore) GetRateLimit(ctx context.Context, identifier string) (*core.RateLimitEntry, error) {
	raw, err := s.client.Get(ctx, s.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	var entry core.RateLimitEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode rate limit: %w", err)
	}
	return &entry, nil
}

func (s *RedisRateLimitStore) SetRateLimit(ctx context.Context, entry *core.RateLimitEntry) error {
	if entry == nil || strings.TrimSpace(entry.Identifier) == "" {
		return errors.New("identifier is required")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode rate limit: %w", err)
	}

	if err := s.client.Set(ctx, s.key(entry.Identifier), raw, s.entryTTL(entry)).Err(); err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

// entryTTL keeps blocked entries until the block ends plus the idle TTL.
// The block length is measured from LastSeen, the limiter's own clock.
func (s *RedisRateLimitStore) entryTTL(entry *core.RateLimitEntry) time.Duration {
	ttl := s.ttl
	if !entry.Blocked || entry.BlockedUntil.IsZero() {
		return ttl
	}
	var remaining time.Duration
	if entry.LastSeen.IsZero() {
		remaining = time.Until(entry.BlockedUntil)
	} else {
		remaining = entry.BlockedUntil.Sub(entry.LastSeen)
	}
	if remaining > 0 {
		ttl += remaining
	}
	return ttl
}

func (s *RedisRateLimitStore) DeleteRateLimit(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

// SweepRateLimits scans the key prefix. Key TTLs already bound memory; the
// sweep removes entries that went idle sooner than their TTL.
func (s *RedisRateLimitStore) SweepRateLimits(ctx context.Context, cutoff, now time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		entry, err := s.GetRateLimit(ctx, strings.TrimPrefix(key, s.prefix))
		if err != nil || entry == nil {
			continue
		}
		if !entry.LastSeen.Before(cutoff) {
			continue
		}
		if entry.Blocked && entry.BlockedUntil.After(now) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("sweep rate limits: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep rate limits: %w", err)
	}
	return removed, nil
}

// ListRateLimits returns every entry under the key prefix, ordered by identifier.
func (s *RedisRateLimitStore) ListRateLimits(ctx context.Context) ([]core.RateLimitEntry, error) {
	entries := []core.RateLimitEntry{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		entry, err := s.GetRateLimit(ctx, strings.TrimPrefix(iter.Val(), s.prefix))
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identifier < entries[j].Identifier })
	return entries, nil
}
