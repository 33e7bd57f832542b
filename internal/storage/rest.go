package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTClient speaks the hosted storage API:
//
//	GET  /storage/v1/bucket
//	POST /storage/v1/bucket
//	POST /storage/v1/object/{bucket}/{object}
//	     /storage/v1/object/public/{bucket}/{object}
type RESTClient struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
}

// NewRESTClient validates the base URL.
func NewRESTClient(baseURL, serviceKey string, timeout time.Duration) (*RESTClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid storage url: %w", err)
	}
	return &RESTClient{
		BaseURL:    baseURL,
		ServiceKey: strings.TrimSpace(serviceKey),
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

// APIError is a non-2xx response from the storage API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage api returned %d", e.Status)
	}
	return fmt.Sprintf("storage api returned %d: %s", e.Status, e.Message)
}

func (c *RESTClient) ListBuckets(ctx context.Context) ([]Bucket, error) {
	var payload []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Public bool   `json:"public"`
	}
	if err := c.do(ctx, http.MethodGet, "/storage/v1/bucket", "", nil, &payload); err != nil {
		return nil, err
	}
	buckets := make([]Bucket, 0, len(payload))
	for _, item := range payload {
		name := item.Name
		if name == "" {
			name = item.ID
		}
		buckets = append(buckets, Bucket{Name: name, Public: item.Public})
	}
	return buckets, nil
}

func (c *RESTClient) CreateBucket(ctx context.Context, name string, public bool) error {
	if err := validBucketName(name); err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{"id": name, "name": name, "public": public})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/storage/v1/bucket", "application/json", body, nil)
}

func (c *RESTClient) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if err := validBucketName(bucket); err != nil {
		return err
	}
	clean, err := cleanObjectPath(object)
	if err != nil {
		return err
	}
	path := "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapeObject(clean)
	err = c.do(ctx, http.MethodPost, path, contentType, data, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", bucket, ErrBucketNotFound)
	}
	return err
}

func (c *RESTClient) PublicURL(_ context.Context, bucket, object string) (string, error) {
	if err := validBucketName(bucket); err != nil {
		return "", err
	}
	clean, err := cleanObjectPath(object)
	if err != nil {
		return "", err
	}
	return c.BaseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapeObject(clean), nil
}

func (c *RESTClient) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if c.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
		req.Header.Set("apikey", c.ServiceKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/storage/v1/object/") {
		req.Header.Set("x-upsert", "false")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil {
			apiErr.Message = strings.TrimSpace(parsed.Message + " " + parsed.Error)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode storage response: %w", err)
	}
	return nil
}

func escapeObject(object string) string {
	parts := strings.Split(object, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
