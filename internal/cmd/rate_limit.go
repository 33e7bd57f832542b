package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/store"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset order submission rate limits",
	Long: `Inspect and reset order submission rate limits.

Only the "store" and "redis" backends are visible to this command; the
"memory" backend lives inside the running server.`,
}

// rateLimitAdmin lists and deletes entries on a shared limiter backend.
type rateLimitAdmin interface {
	List(ctx context.Context, q store.RateLimitQuery) ([]core.RateLimitEntry, error)
	Reset(ctx context.Context, q store.RateLimitQuery) (int64, error)
	Close() error
}

type storeRateLimits struct{ db *store.Store }

func (s storeRateLimits) List(ctx context.Context, q store.RateLimitQuery) ([]core.RateLimitEntry, error) {
	return s.db.ListRateLimits(ctx, q)
}

func (s storeRateLimits) Reset(ctx context.Context, q store.RateLimitQuery) (int64, error) {
	return s.db.ResetRateLimits(ctx, q)
}

func (s storeRateLimits) Close() error { return s.db.Close() }

type redisRateLimits struct {
	store *store.RedisRateLimitStore
	close func() error
}

func (r redisRateLimits) List(ctx context.Context, q store.RateLimitQuery) ([]core.RateLimitEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	entries, err := r.store.ListRateLimits(ctx)
	if err != nil {
		return nil, err
	}
	return filterRateLimits(entries, q), nil
}

func (r redisRateLimits) Reset(ctx context.Context, q store.RateLimitQuery) (int64, error) {
	entries, err := r.List(ctx, q)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, entry := range entries {
		if err := r.store.DeleteRateLimit(ctx, entry.Identifier); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (r redisRateLimits) Close() error { return r.close() }

// filterRateLimits applies q the way the SQL store does.
func filterRateLimits(entries []core.RateLimitEntry, q store.RateLimitQuery) []core.RateLimitEntry {
	identifier := strings.TrimSpace(q.Identifier)
	prefix := strings.TrimSpace(q.Prefix)
	out := make([]core.RateLimitEntry, 0, len(entries))
	for _, entry := range entries {
		switch {
		case identifier != "" && entry.Identifier != identifier:
			continue
		case identifier == "" && prefix != "" && !strings.HasPrefix(entry.Identifier, prefix):
			continue
		case q.BlockedOnly && !entry.Blocked:
			continue
		}
		out = append(out, entry)
	}
	return out
}

func openRateLimitAdmin(ctx context.Context, cfg *config.Config) (rateLimitAdmin, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend)) {
	case "store":
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storeRateLimits{db: db}, nil
	case "redis":
		client, err := store.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisRateLimits{
			store: store.NewRedisRateLimitStore(client, cfg.Redis.KeyPrefix, 0),
			close: client.Close,
		}, nil
	default:
		return nil, errors.New("rate_limit.backend is \"memory\"; limiter state is only held by the running server")
	}
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
