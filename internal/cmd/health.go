package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/observability"
	"github.com/rankshop/rankshop/internal/storage"
)

const healthCheckTimeout = 10 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check: configuration, database, object storage and
webhook settings. Storage and webhook problems are warnings because orders
still go through with inline proofs and no announcement.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		if logger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg := loadConfig(cmd.Context())
		logger.Info("✅ Configuration valid")

		ctx, cancel := context.WithTimeout(cmd.Context(), healthCheckTimeout)
		defer cancel()

		db, err := openStore(ctx, cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Database unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.Ping(ctx); err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Database ping failed", err)
			return
		}
		logger.Info("✅ Database reachable", zap.String("driver", db.Driver()))

		warnings := 0
		backend, err := storage.Open(cfg.Storage, publicBaseURL(cfg))
		switch {
		case err != nil:
			warnings++
			logger.Warn("⚠️  Storage misconfigured; proofs will be stored inline", zap.Error(err))
		case backend == nil:
			warnings++
			logger.Warn("⚠️  Storage disabled; proofs will be stored inline")
		default:
			available, err := storage.EnsureBuckets(ctx, backend, cfg.Storage.Buckets, false)
			if err != nil {
				warnings++
				logger.Warn("⚠️  Some upload buckets are unavailable", zap.Strings("available", available), zap.Error(err))
			} else {
				logger.Info("✅ Upload buckets available", zap.Strings("buckets", available))
			}
		}

		if newNotifier(cfg).Enabled() {
			logger.Info("✅ Webhook configured")
		} else {
			warnings++
			logger.Warn("⚠️  Webhook not configured; orders will not be announced")
		}

		logger.Info("")
		if warnings > 0 {
			logger.Info("✅ Health check passed with warnings", zap.Int("warnings", warnings))
			return
		}
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
