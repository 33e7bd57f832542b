package metrics

import (
	"github.com/rankshop/rankshop/internal/observability"
)

// Storefront metrics
const (
	OrdersSubmittedTotal      = "orders_submitted_total"
	OrderStatusChangesTotal   = "order_status_changes_total"
	UploadAttemptsTotal       = "upload_attempts_total"
	UploadInlineFallbackTotal = "upload_inline_fallback_total"
	WebhookDeliveriesTotal    = "webhook_deliveries_total"
	RateLimitDecisionsTotal   = "rate_limit_decisions_total"
	RateLimitLastSwept        = "rate_limit_last_swept"
	AdminSessionsTotal        = "admin_sessions_total"
	ProxyRequestsTotal        = "proxy_requests_total"
)

func counter(name string, tags map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, tags)
	}
}

// RecordOrderSubmitted counts submissions by outcome, e.g. "created",
// "rate_limited", "invalid", "failed".
func RecordOrderSubmitted(status string) {
	counter(OrdersSubmittedTotal, map[string]string{"status": status})
}

// RecordOrderStatusChange counts admin status transitions.
func RecordOrderStatusChange(status string) {
	counter(OrderStatusChangesTotal, map[string]string{"status": status})
}

// RecordUploadAttempt counts one strategy attempt.
func RecordUploadAttempt(strategy string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	counter(UploadAttemptsTotal, map[string]string{"strategy": strategy, "result": result})
}

// RecordUploadInlineFallback counts uploads that ended as data URLs.
func RecordUploadInlineFallback() {
	counter(UploadInlineFallbackTotal, nil)
}

// RecordWebhookDelivery counts webhook posts by source ("order", "proxy")
// and result.
func RecordWebhookDelivery(source string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	counter(WebhookDeliveriesTotal, map[string]string{"source": source, "result": result})
}

// RecordRateLimitDecision counts allow/deny/error decisions.
func RecordRateLimitDecision(decision string) {
	counter(RateLimitDecisionsTotal, map[string]string{"decision": decision})
}

// RecordRateLimitSweep publishes how many entries the last sweep removed.
func RecordRateLimitSweep(removed int) {
	gauge(RateLimitLastSwept, float64(removed), nil)
}

// RecordAdminSession counts session lifecycle events.
func RecordAdminSession(event string) {
	counter(AdminSessionsTotal, map[string]string{"event": event})
}

// RecordProxyRequest counts proxy requests by kind ("webhook", "image")
// and outcome.
func RecordProxyRequest(kind, outcome string) {
	counter(ProxyRequestsTotal, map[string]string{"kind": kind, "outcome": outcome})
}
