package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/core"
	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/server/handlers"
	servermw "github.com/rankshop/rankshop/internal/server/middleware"
)

type rejectAll struct{}

func (rejectAll) Validate(context.Context, string) (*core.Session, error) {
	return nil, context.Canceled
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/version", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Error.Code)
}

func TestServerHealthRoutes(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{Health: handlers.NewHealthManager("test")})

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{API: &handlers.API{}, Sessions: rejectAll{}})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/session"},
		{http.MethodGet, "/api/admin/orders"},
		{http.MethodPatch, "/api/admin/orders/abc"},
		{http.MethodPut, "/api/admin/site-config/global_discount"},
		{http.MethodPost, "/api/admin/products/vip/image"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestAdminRoutesAbsentWithoutValidator(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{API: &handlers.API{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyRoutesAreThrottled(t *testing.T) {
	srv := New("127.0.0.1", 0, Deps{
		API:       &handlers.API{},
		Throttles: map[string]*servermw.ThrottleStore{"image": servermw.NewThrottleStore(60, 1)},
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/image-proxy?url=https://i.imgur.com/a.png", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	// The proxy itself is disabled, so the first call reaches the handler.
	assert.Equal(t, []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}, codes)
}

func TestProfilingRoutesAreOptIn(t *testing.T) {
	off := New("127.0.0.1", 0, Deps{})
	rec := httptest.NewRecorder()
	off.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	on := New("127.0.0.1", 0, Deps{Profiling: true})
	rec = httptest.NewRecorder()
	on.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutDefaults(t *testing.T) {
	got := Timeouts{Write: 5 * time.Second}.withDefaults()
	assert.Equal(t, 30*time.Second, got.Read)
	assert.Equal(t, 5*time.Second, got.Write)
	assert.Equal(t, 120*time.Second, got.Idle)
}
