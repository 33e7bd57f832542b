package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/auth"
	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/metrics"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/storage"
	"github.com/rankshop/rankshop/internal/upload"
)

// openStore opens the relational store and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// rateLimitBackend is what the limiter and the rate-limit commands need.
type rateLimitBackend struct {
	engine.RateLimitStore
	close func() error
}

// openRateLimitStore selects the limiter backend. "store" shares the
// relational database; "redis" shares state across instances.
func openRateLimitStore(ctx context.Context, cfg *config.Config, db *store.Store) (*rateLimitBackend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend)) {
	case "", "memory":
		return &rateLimitBackend{RateLimitStore: engine.NewMemoryRateLimitStore(), close: func() error { return nil }}, nil
	case "store":
		return &rateLimitBackend{RateLimitStore: db, close: func() error { return nil }}, nil
	case "redis":
		client, err := store.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		window := cfg.RateLimit.Window
		if window <= 0 {
			window = engine.DefaultRateLimitWindow
		}
		ttl := 2 * window
		if cfg.RateLimit.BlockCooldown > ttl {
			ttl = cfg.RateLimit.BlockCooldown
		}
		return &rateLimitBackend{
			RateLimitStore: store.NewRedisRateLimitStore(client, cfg.Redis.KeyPrefix, ttl),
			close:          client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.RateLimit.Backend)
	}
}

func newRateLimiter(cfg *config.Config, backend engine.RateLimitStore) *engine.RateLimiter {
	return engine.NewRateLimiter(backend, engine.RateLimitConfig{
		Window:        cfg.RateLimit.Window,
		MaxAttempts:   cfg.RateLimit.MaxAttempts,
		BlockCooldown: cfg.RateLimit.BlockCooldown,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}, nil)
}

// publicBaseURL is where media links point when storage is local.
func publicBaseURL(cfg *config.Config) string {
	if url := strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/"); url != "" {
		return url
	}
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// newUploadChain binds the configured buckets, in order, to the storage
// backend. A nil backend leaves only the inline fallback.
func newUploadChain(cfg *config.Config, backend storage.ObjectStorage, logger *logging.Logger) *upload.Chain {
	return &upload.Chain{
		Strategies: upload.BucketStrategies(backend, cfg.Storage.Buckets),
		Validator: upload.Validator{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		AttemptTimeout: cfg.Storage.Timeout,
		Logger:         logger,
	}
}

func newNotifier(cfg *config.Config) *notify.Client {
	return notify.NewClient(cfg.Webhook.URL, cfg.Webhook.Username, cfg.Webhook.AvatarURL, cfg.Webhook.Timeout)
}

// newAuthService signs sessions with the configured secret. Without one a
// random secret is generated, so sessions do not survive a restart.
func newAuthService(cfg *config.Config, db *store.Store, logger *logging.Logger) (*auth.Service, error) {
	secret := []byte(strings.TrimSpace(cfg.Auth.JWTSecret))
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		if logger != nil {
			logger.Warn("auth.jwt_secret is not set; using a random secret, admin sessions end on restart")
		}
	}

	svc, err := auth.NewService(db, secret, cfg.Auth.Issuer, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	svc.Logger = logger
	svc.OnEvent = metrics.RecordAdminSession
	return svc, nil
}

func logStorage(logger *logging.Logger, cfg *config.Config, available []string) {
	if logger == nil {
		return
	}
	logger.Info("Upload chain ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.Strings("buckets", available),
		zap.Bool("inline_only", len(available) == 0))
}
