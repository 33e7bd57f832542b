package config

import "github.com/spf13/viper"

// DefaultBuckets is the ordered bucket list tried by the upload chain.
var DefaultBuckets = []string{"payment-proofs", "uploads", "public"}

// DefaultAllowedTypes lists the accepted upload content types.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// DefaultImageHosts lists the hosts the image proxy may fetch from.
var DefaultImageHosts = []string{"cdn.discordapp.com", "media.discordapp.net", "i.imgur.com", "mc-heads.net", "crafatar.com"}

// SetDefaults registers the built-in configuration layer on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.public_url", "")

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "rankshop:ratelimit:")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.service_key", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.buckets", DefaultBuckets)
	v.SetDefault("storage.timeout", "15s")
	v.SetDefault("storage.create_missing", true)

	v.SetDefault("upload.max_bytes", 3<<20)
	v.SetDefault("upload.allowed_types", DefaultAllowedTypes)
	v.SetDefault("upload.thumbnail_size", 256)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.max_attempts", 3)
	v.SetDefault("rate_limit.block_cooldown", "10m")
	v.SetDefault("rate_limit.sweep_interval", "5m")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.username", "RankShop")
	v.SetDefault("webhook.avatar_url", "")
	v.SetDefault("webhook.timeout", "10s")

	v.SetDefault("proxy.allowed_image_hosts", DefaultImageHosts)
	v.SetDefault("proxy.max_image_bytes", 5<<20)
	v.SetDefault("proxy.timeout", "10s")
	v.SetDefault("proxy.requests_per_minute", 30)
	v.SetDefault("proxy.burst", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "rankshop")
	v.SetDefault("auth.session_ttl", "12h")
	v.SetDefault("auth.cookie_name", "rankshop_session")
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}
