package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleRejectsOverBurst(t *testing.T) {
	store := NewThrottleStore(60, 2)
	handler := Throttle(store, "image")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/image-proxy", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.7:5000").Code)
	assert.Equal(t, http.StatusNoContent, send("203.0.113.7:5001").Code)

	rec := send("203.0.113.7:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusNoContent, send("198.51.100.1:4000").Code)
}

func TestThrottleStoreCleanup(t *testing.T) {
	store := NewThrottleStore(30, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Allow("a")
	now = now.Add(5 * time.Minute)
	store.Allow("b")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, store.Cleanup())
	assert.Equal(t, 1, store.Len())
}
