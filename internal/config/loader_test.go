package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv(EnvFileVar, "")
	SetConfigFile("")
	t.Cleanup(func() { SetConfigFile("") })
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolateConfig(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("rankshop"), "rankshop.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)
		assert.Equal(t, 10*time.Minute, cfg.RateLimit.BlockCooldown)
		assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)

		assert.Equal(t, int64(3<<20), cfg.Upload.MaxBytes)
		assert.Equal(t, DefaultAllowedTypes, cfg.Upload.AllowedTypes)
		assert.Equal(t, DefaultBuckets, cfg.Storage.Buckets)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.NotEmpty(t, cfg.Storage.LocalDir)

		assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
		assert.Equal(t, "rankshop_session", cfg.Auth.CookieName)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolateConfig(t)
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("RANKSHOP_PORT", "3000")
		t.Setenv("RANKSHOP_LOG_LEVEL", "warn")
		t.Setenv("RANKSHOP_METRICS_ENABLED", "false")
		t.Setenv("RANKSHOP_RATE_LIMIT_MAX_ATTEMPTS", "5")
		t.Setenv("RANKSHOP_STORAGE_BUCKETS", "a,b,c")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
		assert.Equal(t, []string{"a", "b", "c"}, cfg.Storage.Buckets)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("RANKSHOP_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolateConfig(t)
		path := filepath.Join(t.TempDir(), "rankshop.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\nwebhook:\n  url: https://example.test/hook\n"), 0o600))
		SetConfigFile(path)
		t.Setenv("RANKSHOP_PORT", "7100")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7100, cfg.Server.Port, "env beats file")
		assert.Equal(t, "https://example.test/hook", cfg.Webhook.URL)
		assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	})

	t.Run("EnvFile", func(t *testing.T) {
		isolateConfig(t)
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("RANKSHOP_WEBHOOK_USERNAME=Shop Bot\n"), 0o600))
		t.Setenv(EnvFileVar, path)
		t.Cleanup(func() { _ = os.Unsetenv("RANKSHOP_WEBHOOK_USERNAME") })

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Shop Bot", cfg.Webhook.Username)
	})

	t.Run("InvalidBackend", func(t *testing.T) {
		isolateConfig(t)
		_, err := Load(ctx, map[string]any{
			"rate_limit": map[string]any{"backend": "redis"},
		})
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	isolateConfig(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	isolateConfig(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	envVarNames := make(map[string]bool)
	for _, spec := range getEnvSpecs() {
		envVarNames[spec.Name] = true
	}

	for _, name := range []string{
		"RANKSHOP_LOG_LEVEL",
		"RANKSHOP_PORT",
		"RANKSHOP_HOST",
		"RANKSHOP_METRICS_PORT",
		"RANKSHOP_DB_PATH",
		"RANKSHOP_WEBHOOK_URL",
		"RANKSHOP_JWT_SECRET",
	} {
		assert.True(t, envVarNames[name], "%s must be mapped", name)
	}
}

func TestDurationParsing(t *testing.T) {
	isolateConfig(t)
	t.Setenv("RANKSHOP_READ_TIMEOUT", "45s")
	t.Setenv("RANKSHOP_SHUTDOWN_TIMEOUT", "5m")
	t.Setenv("RANKSHOP_RATE_LIMIT_BLOCK_COOLDOWN", "15m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.BlockCooldown)
}
