package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	errwrap "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/metrics"
	"github.com/rankshop/rankshop/internal/observability"
	"github.com/rankshop/rankshop/internal/server"
	"github.com/rankshop/rankshop/internal/server/handlers"
	servermw "github.com/rankshop/rankshop/internal/server/middleware"
	"github.com/rankshop/rankshop/internal/storage"
)

var (
	serverPort int
	serverHost string
)

// housekeepingInterval paces session purging, proxy throttle cleanup and
// the uptime gauge.
const housekeepingInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront HTTP server",
	Long: `Start the storefront HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate configuration (restart to apply changes)`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	overrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		overrides["server.host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		overrides["server.port"] = serverPort
	}
	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "configuration is invalid")
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()
	level := cfg.Logging.Level
	if cfg.Debug.Enabled {
		level = "debug"
	}
	observability.InitServerLoggerWith(identity.BinaryName, observability.ServerLoggerOptions{
		Level:     level,
		Profile:   cfg.Logging.Profile,
		Namespace: namespace,
	})
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "store initialization failed")
	}
	defer db.Close() // nolint:errcheck // closed on shutdown

	limitStore, err := openRateLimitStore(ctx, cfg, db)
	if err != nil {
		return errwrap.WrapExternalService(ctx, err, "rate limit backend unavailable")
	}
	defer limitStore.close() // nolint:errcheck // closed on shutdown
	limiter := newRateLimiter(cfg, limitStore)
	limiter.Start(ctx, func(removed int, err error) {
		if err != nil {
			logger.Warn("Rate limit sweep failed", zap.Error(err))
			return
		}
		metrics.RecordRateLimitSweep(removed)
		if removed > 0 {
			logger.Debug("Rate limit sweep", zap.Int("removed", removed))
		}
	})

	backend, err := storage.Open(cfg.Storage, publicBaseURL(cfg))
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "storage configuration is invalid")
	}
	buckets := cfg.Storage.Buckets
	if backend != nil {
		available, err := storage.EnsureBuckets(ctx, backend, cfg.Storage.Buckets, cfg.Storage.CreateMissing)
		if err != nil {
			// Missing buckets only shorten the chain; uploads still fall back inline.
			logger.Warn("Some storage buckets are unavailable", zap.Error(err))
		}
		buckets = available
	}
	chainCfg := *cfg
	chainCfg.Storage.Buckets = buckets
	chain := newUploadChain(&chainCfg, backend, logger)
	logStorage(logger, &chainCfg, buckets)

	authSvc, err := newAuthService(cfg, db, logger)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "admin auth configuration is invalid")
	}

	webhook := newNotifier(cfg)
	if !webhook.Enabled() {
		logger.Warn("webhook.url is not set; orders will not be announced")
	}

	api := &handlers.API{
		Orders: &engine.Orchestrator{
			Store:         db,
			Limiter:       limiter,
			Uploads:       chain,
			Notifier:      webhook,
			NotifyTimeout: cfg.Webhook.Timeout,
			Logger:        logger,
		},
		Catalog: &engine.Catalog{
			Store:         db,
			Images:        chain,
			ThumbnailSize: cfg.Upload.ThumbnailSize,
			Logger:        logger,
		},
		OrderLog:     db,
		Auth:         authSvc,
		Webhook:      webhook,
		Images:       handlers.NewImageProxy(cfg.Proxy.AllowedImageHosts, cfg.Proxy.MaxImageBytes, cfg.Proxy.Timeout),
		MaxUpload:    cfg.Upload.MaxBytes,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
		Logger:       logger,
	}
	if local, ok := backend.(*storage.Local); ok {
		api.Media = local
	}

	health := handlers.NewHealthManager(versionInfo.Version)
	if cfg.Health.Enabled {
		health.RegisterChecker("store", handlers.CheckFunc(db.Ping))
		health.RegisterLivenessChecker("telemetry", handlers.CheckFunc(func(context.Context) error {
			if cfg.Metrics.Enabled && observability.TelemetrySystem == nil {
				return errwrap.NewInternalError("telemetry system not initialized")
			}
			return nil
		}))
		if backend != nil {
			health.RegisterChecker("storage", handlers.CheckFunc(func(ctx context.Context) error {
				_, err := backend.ListBuckets(ctx)
				return err
			}))
		}
	}

	throttles := map[string]*servermw.ThrottleStore{
		"webhook": servermw.NewThrottleStore(cfg.Proxy.RequestsPerMinute, cfg.Proxy.Burst),
		"image":   servermw.NewThrottleStore(cfg.Proxy.RequestsPerMinute, cfg.Proxy.Burst),
	}

	handlers.SetAppIdentity(identity)
	handlers.SetFeatures(handlers.Features{
		StoreDriver:      db.Driver(),
		RateLimitBackend: cfg.RateLimit.Backend,
		UploadBuckets:    buckets,
		Webhook:          webhook.Enabled(),
		ImageProxy:       len(cfg.Proxy.AllowedImageHosts) > 0,
		AdminPanel:       true,
	})
	srv := server.New(cfg.Server.Host, cfg.Server.Port, server.Deps{
		API:       api,
		Health:    health,
		Sessions:  authSvc,
		Throttles: throttles,
		Profiling: cfg.Debug.PprofEnabled,
		Timeouts: server.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		},
	})

	if cfg.Debug.PprofEnabled {
		logger.Warn("Profiling endpoints are exposed under /debug")
	}

	started := time.Now()
	metrics.SetServerStartTime(started)
	go housekeeping(ctx, started, db, throttles)

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("version", versionInfo.Version),
		zap.String("store", db.Driver()),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Bool("webhook", webhook.Enabled()))

	sigs := &serveSignals{
		server:          srv,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		cancel:          cancel,
		reload:          reloadConfig(logger),
		logger:          logger,
		doubleTap:       true,
	}
	sigs.installRemote(signals.GetDefaultManager())

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	go func() {
		errChan <- sigs.listen(ctx)
	}()

	if err := <-errChan; err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	CountOrders(ctx context.Context) (map[core.OrderStatus]int, error)
}

// housekeeping purges expired sessions and idle throttle buckets and
// refreshes the store gauges until ctx ends.
func housekeeping(ctx context.Context, started time.Time, db sessionPurger, throttles map[string]*servermw.ThrottleStore) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := db.PurgeExpiredSessions(ctx, now.UTC()); err != nil {
				observability.ServerLogger.Warn("Session purge failed", zap.Error(err))
			} else if n > 0 {
				observability.ServerLogger.Debug("Purged expired sessions", zap.Int64("count", n))
			}
			for _, t := range throttles {
				t.Cleanup()
			}
			if counts, err := db.CountOrders(ctx); err == nil {
				byStatus := make(map[string]int, len(counts))
				for status, n := range counts {
					byStatus[string(status)] = n
				}
				metrics.SetOrderCounts(byStatus)
			}
			metrics.SetServerUptime(started)
		}
	}
}

// reloadConfig re-reads configuration on SIGHUP and reports whether it is
// valid. The running server keeps its wiring until restart.
func reloadConfig(logger *logging.Logger) signals.ReloadFunc {
	return func(ctx context.Context) error {
		reloaded, err := config.Load(ctx)
		if err != nil {
			logger.Error("Config reload failed", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		logger.Info("Configuration is valid; restart to apply changes",
			zap.String("log_level", reloaded.Logging.Level),
			zap.Bool("webhook", reloaded.Webhook.URL != ""))
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
