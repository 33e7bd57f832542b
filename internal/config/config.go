package config

import "time"

// Config represents the complete application configuration, layered as:
// Layer 1: defaults set in code (see defaults.go)
// Layer 2: YAML file (--config, repository ./config, or XDG config dir)
// Layer 3: .env file and RANKSHOP_* environment variables
// Layer 4: runtime overrides supplied by commands
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PublicURL is the externally visible base URL, used to build media links.
	PublicURL string `mapstructure:"public_url"`
}

// StoreConfig selects the relational backend.
//
// driver "libsql" (default) uses Path or URL; driver "postgres" uses URL as a
// lib/pq connection string.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig configures the shared rate limit backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig configures object storage for payment proofs and product images.
type StorageConfig struct {
	// Driver is "rest" (hosted object storage API), "local" or "none".
	Driver     string        `mapstructure:"driver"`
	URL        string        `mapstructure:"url"`
	ServiceKey string        `mapstructure:"service_key"`
	LocalDir   string        `mapstructure:"local_dir"`
	Buckets    []string      `mapstructure:"buckets"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// CreateMissing creates absent buckets at startup.
	CreateMissing bool `mapstructure:"create_missing"`
}

// UploadConfig bounds accepted image uploads.
type UploadConfig struct {
	MaxBytes      int64    `mapstructure:"max_bytes"`
	AllowedTypes  []string `mapstructure:"allowed_types"`
	ThumbnailSize int      `mapstructure:"thumbnail_size"`
}

// RateLimitConfig configures order submission throttling.
type RateLimitConfig struct {
	// Backend is "memory", "store" or "redis".
	Backend       string        `mapstructure:"backend"`
	Window        time.Duration `mapstructure:"window"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BlockCooldown time.Duration `mapstructure:"block_cooldown"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// WebhookConfig configures order notifications.
type WebhookConfig struct {
	URL       string        `mapstructure:"url"`
	Username  string        `mapstructure:"username"`
	AvatarURL string        `mapstructure:"avatar_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ProxyConfig configures the webhook and image proxies.
type ProxyConfig struct {
	AllowedImageHosts []string      `mapstructure:"allowed_image_hosts"`
	MaxImageBytes     int64         `mapstructure:"max_image_bytes"`
	Timeout           time.Duration `mapstructure:"timeout"`
	// RequestsPerMinute and Burst throttle each client IP.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// AuthConfig configures admin sessions.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
