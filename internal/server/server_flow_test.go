//go:build cgo

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/auth"
	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/engine"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/server/handlers"
	"github.com/rankshop/rankshop/internal/storage"
	"github.com/rankshop/rankshop/internal/upload"
)

type storefront struct {
	handler http.Handler
	store   *store.Store
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.UpsertProduct(ctx, &core.Product{
		ID: "vip", Name: "VIP", PriceCents: 999, Active: true,
	}))
	require.NoError(t, st.SetSiteConfig(ctx, core.SiteConfigGlobalDiscount, "15"))

	local, err := storage.NewLocal(t.TempDir(), "http://shop.test")
	require.NoError(t, err)
	require.NoError(t, local.CreateBucket(ctx, "uploads", true))
	chain := &upload.Chain{Strategies: upload.BucketStrategies(local, []string{"uploads"})}

	authSvc, err := auth.NewService(st, []byte("0123456789abcdef0123456789abcdef"), "", time.Hour)
	require.NoError(t, err)
	authSvc.Hasher = auth.NewBcryptHasher(4)
	require.NoError(t, authSvc.CreateAdmin(ctx, "owner", "correct horse"))

	api := &handlers.API{
		Orders: &engine.Orchestrator{
			Store:    st,
			Limiter:  engine.NewRateLimiter(engine.NewMemoryRateLimitStore(), engine.RateLimitConfig{}, nil),
			Uploads:  chain,
			Notifier: notify.NewClient("", "", "", time.Second),
		},
		Catalog:  &engine.Catalog{Store: st, Images: chain},
		OrderLog: st,
		Auth:     authSvc,
		Media:    local,
	}

	srv := New("127.0.0.1", 0, Deps{API: api, Sessions: authSvc})
	return &storefront{handler: srv.Handler(), store: st}
}

func (s *storefront) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func orderForm(t *testing.T, username string) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("username", username))
	require.NoError(t, w.WriteField("platform", "java"))
	require.NoError(t, w.WriteField("product_id", "vip"))
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="proof"; filename="proof.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestOrderLifecycleThroughHTTP(t *testing.T) {
	shop := newStorefront(t)

	rec := shop.do(t, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"effective_price_cents":849`)

	body, contentType := orderForm(t, "Steve")
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec = shop.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var receipt struct {
		Order core.Order `json:"order"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&receipt))
	assert.Equal(t, core.OrderStatus("pending"), receipt.Order.Status)
	assert.Equal(t, int64(849), receipt.Order.PriceCents)
	require.True(t, strings.HasPrefix(receipt.Order.PaymentProof, "http://shop.test/media/uploads/"))

	rec = shop.do(t, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(receipt.Order.PaymentProof, "http://shop.test"), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = shop.do(t, httptest.NewRequest(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"username":"owner","password":"correct horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodPatch, "/api/admin/orders/"+receipt.Order.ID, strings.NewReader(`{"status":"approved"}`))
	req.AddCookie(cookies[0])
	rec = shop.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=approved", nil)
	req.AddCookie(cookies[0])
	rec = shop.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), receipt.Order.ID)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req.AddCookie(cookies[0])
	require.Equal(t, http.StatusNoContent, shop.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/session", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, http.StatusUnauthorized, shop.do(t, req).Code)
}

func TestOrderSubmissionIsRateLimited(t *testing.T) {
	shop := newStorefront(t)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		body, contentType := orderForm(t, "Alex")
		req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", "test-browser")
		codes = append(codes, shop.do(t, req).Code)
	}
	assert.Equal(t, []int{201, 201, 201, 429}, codes)
}

func TestOrderSubmissionRejectsBadInput(t *testing.T) {
	shop := newStorefront(t)

	body, contentType := orderForm(t, "no spaces allowed")
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := shop.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	req = httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"owner","password":"wrong password"}`))
	assert.Equal(t, http.StatusUnauthorized, shop.do(t, req).Code)
}
