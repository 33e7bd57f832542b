package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestStorefrontMetricsEmit(t *testing.T) {
	collector := withCollector(t)

	RecordOrderSubmitted("created")
	RecordOrderStatusChange("approved")
	RecordUploadAttempt("bucket:uploads", false)
	RecordUploadInlineFallback()
	RecordWebhookDelivery("order", true)
	RecordRateLimitDecision("deny")
	RecordRateLimitSweep(3)
	RecordAdminSession("signed_in")
	RecordProxyRequest("image", "ok")
	RecordHealthCheck("store", true, 5*time.Millisecond)
	SetOrderCounts(map[string]int{"pending": 2, "approved": 1})

	for _, name := range []string{
		OrdersSubmittedTotal, OrderStatusChangesTotal, UploadAttemptsTotal,
		UploadInlineFallbackTotal, WebhookDeliveriesTotal, RateLimitDecisionsTotal,
		RateLimitLastSwept, AdminSessionsTotal, ProxyRequestsTotal,
		HealthCheckTotal, HealthCheckDuration,
	} {
		assert.Equal(t, 1, collector.CountMetricsByName(name), name)
	}
	assert.Equal(t, 2, collector.CountMetricsByName(StoreOrders))
}

func TestMetricsWithoutTelemetryAreNoops(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordError("NOT_FOUND", 404)
		RecordPanic()
		SetServerStartTime(time.Now())
		SetServerUptime(time.Now().Add(-time.Minute))
	})
}
