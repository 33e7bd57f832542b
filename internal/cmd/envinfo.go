package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Secrets are reported as set or not set.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		version := crucible.GetVersion()

		logger.Info("=== Rankshop Environment Information ===")
		logger.Info("")

		name := "rankshop"
		if identity := GetAppIdentity(); identity != nil {
			name = identity.BinaryName
		}
		logger.Info("Application:")
		logger.Info("  Name:       " + name)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		logger.Info("Server:")
		logger.Info("  Listen:         "+fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
		logger.Info("  Public URL:     " + publicBaseURL(cfg))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		logger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		logger.Info("")

		logger.Info("Store:")
		logger.Info("  Driver:         "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  URL:            " + redactURL(cfg.Store.URL))
		} else {
			logger.Info("  Path:           "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		logger.Info("")

		logger.Info("Rate Limit:")
		logger.Info("  Backend:        " + cfg.RateLimit.Backend)
		logger.Info(fmt.Sprintf("  Policy:         %d attempts / %s, block %s, sweep %s",
			cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window, cfg.RateLimit.BlockCooldown, cfg.RateLimit.SweepInterval))
		if strings.EqualFold(cfg.RateLimit.Backend, "redis") {
			logger.Info("  Redis:          " + cfg.Redis.Addr)
			logger.Info("  Redis Prefix:   " + cfg.Redis.KeyPrefix)
		}
		logger.Info("")

		logger.Info("Storage:")
		logger.Info("  Driver:         " + cfg.Storage.Driver)
		logger.Info("  Buckets:        " + strings.Join(cfg.Storage.Buckets, " -> ") + " -> inline")
		if cfg.Storage.Driver == "local" {
			logger.Info("  Local Dir:      " + cfg.Storage.LocalDir)
		} else if cfg.Storage.URL != "" {
			logger.Info("  URL:            " + cfg.Storage.URL)
			logger.Info("  Service Key:    " + setOrNot(cfg.Storage.ServiceKey))
		}
		logger.Info(fmt.Sprintf("  Max Upload:     %d bytes", cfg.Upload.MaxBytes))
		logger.Info("")

		logger.Info("Webhook:")
		logger.Info("  URL:            " + setOrNot(cfg.Webhook.URL))
		logger.Info("  Username:       " + cfg.Webhook.Username)
		logger.Info("")

		logger.Info("Proxy:")
		logger.Info("  Image Hosts:    " + strings.Join(cfg.Proxy.AllowedImageHosts, ", "))
		logger.Info(fmt.Sprintf("  Throttle:       %d/min, burst %d", cfg.Proxy.RequestsPerMinute, cfg.Proxy.Burst))
		logger.Info("")

		logger.Info("Auth:")
		logger.Info("  JWT Secret:     " + setOrNot(cfg.Auth.JWTSecret))
		logger.Info("  Session TTL:    " + cfg.Auth.SessionTTL.String())
		logger.Info(fmt.Sprintf("  Secure Cookie:  %t", cfg.Auth.CookieSecure))
		logger.Info("")

		logger.Info("=== End Environment Information ===")
	},
}

func setOrNot(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

// redactURL hides the password of a connection URL.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return raw
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return raw
	}
	return scheme + "://" + user + ":***@" + host
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
