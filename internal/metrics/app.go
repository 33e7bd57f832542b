package metrics

import (
	"time"

	"github.com/rankshop/rankshop/internal/observability"
)

// Process and probe metrics
const (
	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"
	ServerStartTime     = "server_start_time_seconds"
	ServerUptime        = "server_uptime_seconds"
	StoreOrders         = "store_orders"
)

func gauge(name string, value float64, tags map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(name, value, tags)
	}
}

// RecordHealthCheck records one checker run.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	counter(HealthCheckTotal, map[string]string{"check": checkName, "status": status})
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
	}
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(started time.Time) {
	gauge(ServerStartTime, float64(started.Unix()), nil)
}

// SetServerUptime records the uptime since started.
func SetServerUptime(started time.Time) {
	gauge(ServerUptime, time.Since(started).Seconds(), nil)
}

// SetOrderCounts publishes the number of stored orders per status.
func SetOrderCounts(counts map[string]int) {
	for status, n := range counts {
		gauge(StoreOrders, float64(n), map[string]string{"status": status})
	}
}
