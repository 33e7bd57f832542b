// Package config provides centralized configuration management for RankShop.
// Defaults live in code; a YAML file, a .env file, RANKSHOP_* environment
// variables and runtime overrides are layered on top with viper and decoded
// into typed structs with mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/pathfinder"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rankshop/rankshop/internal/appid"
)

// EnvFileVar names an explicit .env file to load before reading the environment.
const EnvFileVar = "RANKSHOP_ENV_FILE"

var (
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appid.Identity

	// explicitConfigFile is set by --config.
	explicitConfigFile string
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the YAML file used by Load. An empty path restores
// discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	explicitConfigFile = strings.TrimSpace(path)
}

// Load builds the configuration from all layers. It is safe to call multiple
// times (e.g. for config reload).
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if path := configFilePath(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if err := v.MergeConfigMap(envOverrides); err != nil {
		return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
	}
	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to merge runtime overrides: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if strings.TrimSpace(cfg.Storage.LocalDir) == "" {
		cfg.Storage.LocalDir = DefaultMediaDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "libsql", "postgres":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.RateLimit.Backend)) {
	case "", "memory", "store", "redis":
	default:
		return fmt.Errorf("unsupported rate limit backend: %s", c.RateLimit.Backend)
	}
	if strings.EqualFold(c.RateLimit.Backend, "redis") && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("rate_limit.backend=redis requires redis.addr")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "local", "rest", "none":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func loadDotEnv() error {
	if path := strings.TrimSpace(os.Getenv(EnvFileVar)); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// configFilePath resolves the YAML layer: --config, then
// <repo>/config/<name>.yaml, then the XDG user config paths.
func configFilePath() string {
	configMu.RLock()
	explicit := explicitConfigFile
	configMu.RUnlock()
	if explicit != "" {
		return explicit
	}

	configName, _ := appNamesForPaths()
	candidates := []string{}
	if root, err := findProjectRoot(); err == nil {
		candidates = append(candidates, filepath.Join(root, "config", configName+".yaml"))
	}
	candidates = append(candidates, getUserConfigPaths()...)

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// findProjectRoot walks up from the working directory to the nearest
// go.mod or .git, bounded by gofulmen/pathfinder's home ceiling.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	rootPath, err := pathfinder.FindRepositoryRoot(cwd, []string{"go.mod", ".git"}, pathfinder.WithMaxDepth(10))
	if err != nil {
		return "", fmt.Errorf("project root not found: %w", err)
	}
	return rootPath, nil
}

// getUserConfigPaths returns the XDG config file candidates.
func getUserConfigPaths() []string {
	configName, binaryName := appNamesForPaths()
	legacyNames := []string{}
	if binaryName != configName {
		legacyNames = append(legacyNames, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacyNames...)
}

// getEnvSpecs maps {PREFIX}{NAME} environment variables to config paths.
// Duration and list fields are read as strings and converted by the decoder.
func getEnvSpecs() []EnvVarSpec {
	prefix := appIdentity.Prefix()

	return []EnvVarSpec{
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "PUBLIC_URL", Path: []string{"server", "public_url"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		{Name: prefix + "REDIS_ADDR", Path: []string{"redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"redis", "db"}, Type: EnvInt},

		{Name: prefix + "STORAGE_DRIVER", Path: []string{"storage", "driver"}, Type: EnvString},
		{Name: prefix + "STORAGE_URL", Path: []string{"storage", "url"}, Type: EnvString},
		{Name: prefix + "STORAGE_SERVICE_KEY", Path: []string{"storage", "service_key"}, Type: EnvString},
		{Name: prefix + "STORAGE_LOCAL_DIR", Path: []string{"storage", "local_dir"}, Type: EnvString},
		{Name: prefix + "STORAGE_BUCKETS", Path: []string{"storage", "buckets"}, Type: EnvString},

		{Name: prefix + "UPLOAD_MAX_BYTES", Path: []string{"upload", "max_bytes"}, Type: EnvInt},

		{Name: prefix + "RATE_LIMIT_BACKEND", Path: []string{"rate_limit", "backend"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_WINDOW", Path: []string{"rate_limit", "window"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_MAX_ATTEMPTS", Path: []string{"rate_limit", "max_attempts"}, Type: EnvInt},
		{Name: prefix + "RATE_LIMIT_BLOCK_COOLDOWN", Path: []string{"rate_limit", "block_cooldown"}, Type: EnvString},

		{Name: prefix + "WEBHOOK_URL", Path: []string{"webhook", "url"}, Type: EnvString},
		{Name: prefix + "WEBHOOK_USERNAME", Path: []string{"webhook", "username"}, Type: EnvString},

		{Name: prefix + "PROXY_ALLOWED_IMAGE_HOSTS", Path: []string{"proxy", "allowed_image_hosts"}, Type: EnvString},

		{Name: prefix + "JWT_SECRET", Path: []string{"auth", "jwt_secret"}, Type: EnvString},
		{Name: prefix + "SESSION_TTL", Path: []string{"auth", "session_ttl"}, Type: EnvString},
		{Name: prefix + "COOKIE_SECURE", Path: []string{"auth", "cookie_secure"}, Type: EnvBool},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "rankshop" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "rankshop"
	binaryName = "rankshop"
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// DefaultMediaDir returns the directory used by the local storage driver.
func DefaultMediaDir() string {
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./media"
	}
	return filepath.Join(dataDir, "media")
}
