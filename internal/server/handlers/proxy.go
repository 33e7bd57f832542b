package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rankshop/rankshop/internal/errors"
	"github.com/rankshop/rankshop/internal/metrics"
	"github.com/rankshop/rankshop/internal/notify"
)

var (
	ErrHostNotAllowed  = errors.New("image host is not allowed")
	ErrNotImage        = errors.New("upstream response is not an image")
	ErrImageTooLarge   = errors.New("upstream image is too large")
	ErrUpstreamFailure = errors.New("upstream request failed")
)

// proxiedTypes are the upstream content types the proxy relays. Scriptable
// formats such as SVG are refused.
var proxiedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// proxiedImagePolicy keeps relayed bytes inert if a browser opens them
// directly.
const proxiedImagePolicy = "default-src 'none'; sandbox"

// ImageProxy fetches images from allow-listed hosts over HTTPS.
type ImageProxy struct {
	AllowedHosts []string
	MaxBytes     int64
	Client       *http.Client
}

// ProxiedImage is a fetched image body.
type ProxiedImage struct {
	ContentType  string
	Data         []byte
	CacheControl string
}

// NewImageProxy builds a proxy whose client refuses redirects off the
// allow list.
func NewImageProxy(hosts []string, maxBytes int64, timeout time.Duration) *ImageProxy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	p := &ImageProxy{MaxBytes: maxBytes}
	for _, host := range hosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			p.AllowedHosts = append(p.AllowedHosts, host)
		}
	}
	p.Client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return errors.New("too many redirects")
			}
			if _, err := p.checkURL(req.URL); err != nil {
				return err
			}
			return nil
		},
	}
	return p
}

// Allowed reports whether u's host or one of its parents is on the allow
// list. Entries without a port only match the default HTTPS port; entries
// with a port match that exact host:port.
func (p *ImageProxy) Allowed(u *url.URL) bool {
	hostPort := strings.ToLower(u.Host)
	name := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	port := u.Port()
	for _, allowed := range p.AllowedHosts {
		if strings.Contains(allowed, ":") {
			if hostPort == allowed {
				return true
			}
			continue
		}
		if port != "" && port != "443" {
			continue
		}
		if name == allowed || strings.HasSuffix(name, "."+allowed) {
			return true
		}
	}
	return false
}

func (p *ImageProxy) checkURL(u *url.URL) (*url.URL, error) {
	if u == nil || u.Scheme != "https" || u.User != nil {
		return nil, fmt.Errorf("%w: only plain https urls are proxied", ErrHostNotAllowed)
	}
	if !p.Allowed(u) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
	}
	return u, nil
}

// Fetch downloads rawURL when its host is allowed.
func (p *ImageProxy) Fetch(ctx context.Context, rawURL string) (*ProxiedImage, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostNotAllowed, err)
	}
	if _, err := p.checkURL(parsed); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFailure, resp.StatusCode)
	}
	contentType, err := proxiedContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > p.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	if int64(len(data)) > p.MaxBytes {
		return nil, ErrImageTooLarge
	}

	cacheControl := resp.Header.Get("Cache-Control")
	if cacheControl == "" {
		cacheControl = "public, max-age=3600"
	}
	return &ProxiedImage{ContentType: contentType, Data: data, CacheControl: cacheControl}, nil
}

func proxiedContentType(header string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotImage, header)
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	if !proxiedTypes[mediaType] {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mediaType)
	}
	return mediaType, nil
}

// ProxyImage serves GET /api/image-proxy?url=.
func (a *API) ProxyImage(w http.ResponseWriter, r *http.Request) {
	if a.Images == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("image proxy is disabled"))
		return
	}
	target := r.URL.Query().Get("url")
	if trimmed(target) == "" {
		respondWithError(w, r, apperrors.NewValidationError("url query parameter is required"))
		return
	}

	image, err := a.Images.Fetch(r.Context(), target)
	if err != nil {
		metrics.RecordProxyRequest("image", "error")
		ctx := r.Context()
		switch {
		case errors.Is(err, ErrHostNotAllowed):
			respondWithError(w, r, apperrors.WrapForbidden(ctx, err, err.Error()))
		case errors.Is(err, ErrNotImage):
			respondWithError(w, r, apperrors.WrapUnsupportedMediaType(ctx, err, "upstream response is not an image"))
		case errors.Is(err, ErrImageTooLarge):
			respondWithError(w, r, apperrors.WrapPayloadTooLarge(ctx, err, "upstream image is too large"))
		default:
			respondWithError(w, r, apperrors.WrapExternalService(ctx, err, "image could not be fetched"))
		}
		return
	}

	metrics.RecordProxyRequest("image", "ok")
	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
	w.Header().Set("Cache-Control", image.CacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", proxiedImagePolicy)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image.Data)
}

// ProxyWebhook validates a webhook document and forwards it to the configured
// endpoint.
func (a *API) ProxyWebhook(w http.ResponseWriter, r *http.Request) {
	if !a.Webhook.Enabled() {
		respondWithDomainError(w, r, notify.ErrNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var msg notify.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "webhook document is not valid JSON"))
		return
	}

	err := a.Webhook.Send(r.Context(), msg)
	metrics.RecordWebhookDelivery("proxy", err == nil)
	if err != nil {
		metrics.RecordProxyRequest("webhook", "error")
		respondWithDomainError(w, r, err)
		return
	}
	metrics.RecordProxyRequest("webhook", "ok")
	w.WriteHeader(http.StatusNoContent)
}
