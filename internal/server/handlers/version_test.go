package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/appid"
)

func TestVersionHandlerIncludesIdentityMetadata(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-05-01T12:00:00Z")
	SetAppIdentity(&appid.Identity{BinaryName: "rankshop-test"})
	t.Cleanup(func() { SetAppIdentity(nil) })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "rankshop-test", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
}

func TestVersionHandlerReportsFeatures(t *testing.T) {
	SetFeatures(Features{
		StoreDriver:      "libsql",
		RateLimitBackend: "memory",
		Webhook:          true,
		AdminPanel:       true,
	})
	t.Cleanup(func() { SetFeatures(Features{}) })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var raw map[string]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	feats := raw["features"]
	assert.Equal(t, "libsql", feats["store_driver"])
	assert.Equal(t, true, feats["webhook"])
	assert.Equal(t, false, feats["image_proxy"])
	assert.Equal(t, []any{}, feats["upload_buckets"])
}
