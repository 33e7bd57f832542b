package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/notify"
)

func newTLSImageServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "https://evil.example.test/x.png", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func proxyFor(t *testing.T, srv *httptest.Server, maxBytes int64) *ImageProxy {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p := NewImageProxy([]string{u.Host}, maxBytes, 5*time.Second)
	p.Client.Transport = srv.Client().Transport
	return p
}

func TestImageProxyServesAllowedImage(t *testing.T) {
	srv := newTLSImageServer(t, "image/png", []byte("\x89PNG fake"))
	api := &API{Images: proxyFor(t, srv, 1024)}

	req := httptest.NewRequest(http.MethodGet, "/api/image-proxy?url="+url.QueryEscape(srv.URL+"/skin.png"), nil)
	rec := httptest.NewRecorder()
	api.ProxyImage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'; sandbox", rec.Header().Get("Content-Security-Policy"))
}

func TestImageProxyRejections(t *testing.T) {
	srv := newTLSImageServer(t, "text/html", []byte("<html>"))
	api := &API{Images: proxyFor(t, srv, 1024)}

	cases := map[string]int{
		"https://not-allowed.example.test/a.png":                       http.StatusForbidden,
		"http://" + strings.TrimPrefix(srv.URL, "https://") + "/a.png": http.StatusForbidden,
		srv.URL + "/page":     http.StatusUnsupportedMediaType,
		srv.URL + "/redirect": http.StatusForbidden,
	}
	for target, status := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/image-proxy?url="+url.QueryEscape(target), nil)
		rec := httptest.NewRecorder()
		api.ProxyImage(rec, req)
		assert.Equal(t, status, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	api.ProxyImage(rec, httptest.NewRequest(http.MethodGet, "/api/image-proxy", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, contentType := range []string{"image/svg+xml", "image/svg+xml; charset=utf-8", "image/x-icon", "image/"} {
		svg := newTLSImageServer(t, contentType, []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`))
		api := &API{Images: proxyFor(t, svg, 1024)}
		req := httptest.NewRequest(http.MethodGet, "/api/image-proxy?url="+url.QueryEscape(svg.URL+"/logo.svg"), nil)
		rec := httptest.NewRecorder()
		api.ProxyImage(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, contentType)
		assert.NotContains(t, rec.Body.String(), "<script>", contentType)
	}
}

func TestProxiedContentTypeNormalizes(t *testing.T) {
	for header, want := range map[string]string{
		"image/PNG":         "image/png",
		"image/jpg":         "image/jpeg",
		"image/webp; q=0.9": "image/webp",
		"image/gif":         "image/gif",
	} {
		got, err := proxiedContentType(header)
		require.NoError(t, err, header)
		assert.Equal(t, want, got, header)
	}
}

func TestImageProxyEnforcesSizeLimit(t *testing.T) {
	srv := newTLSImageServer(t, "image/jpeg", make([]byte, 2048))
	api := &API{Images: proxyFor(t, srv, 1024)}

	req := httptest.NewRequest(http.MethodGet, "/api/image-proxy?url="+url.QueryEscape(srv.URL+"/big.jpg"), nil)
	rec := httptest.NewRecorder()
	api.ProxyImage(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImageProxyAllowsSubdomains(t *testing.T) {
	p := NewImageProxy([]string{"imgur.com", " CDN.discordapp.com "}, 0, 0)
	for raw, want := range map[string]bool{
		"https://i.imgur.com/a.png":                  true,
		"https://imgur.com/a.png":                    true,
		"https://cdn.discordapp.com/x.png":           true,
		"https://imgur.com.evil.test/a.png":          false,
		"https://notimgur.com/a.png":                 false,
		"https://i.imgur.com:8443/a.png":             false,
		"https://media.cdn.discordapp.com:443/x.png": true,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, p.Allowed(u), raw)
	}
}

func TestWebhookProxyForwardsValidatedMessage(t *testing.T) {
	var received notify.Message
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(upstream.Close)

	api := &API{Webhook: notify.NewClient(upstream.URL, "RankShop", "", time.Second)}

	req := httptest.NewRequest(http.MethodPost, "/api/webhook",
		strings.NewReader(`{"content":"hello","embeds":[{"title":"Order","fields":[{"name":"Rank","value":"VIP"}]}]}`))
	rec := httptest.NewRecorder()
	api.ProxyWebhook(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "hello", received.Content)
	assert.Equal(t, "RankShop", received.Username)
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "VIP", received.Embeds[0].Fields[0].Value)
}

func TestWebhookProxyErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	t.Cleanup(upstream.Close)
	api := &API{Webhook: notify.NewClient(upstream.URL, "", "", time.Second)}

	rec := httptest.NewRecorder()
	api.ProxyWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = httptest.NewRecorder()
	api.ProxyWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"content":"hi"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	api.ProxyWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := &API{Webhook: notify.NewClient("", "", "", time.Second)}
	rec = httptest.NewRecorder()
	disabled.ProxyWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"content":"hi"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
