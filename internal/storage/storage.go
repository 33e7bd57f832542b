// Package storage talks to object storage buckets: a hosted REST storage API
// or a local directory served by the HTTP server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rankshop/rankshop/internal/config"
)

// ErrBucketNotFound is returned when an operation targets a missing bucket.
var ErrBucketNotFound = errors.New("bucket not found")

// Bucket describes one storage container.
type Bucket struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// ObjectStorage is the bucket surface the upload chain depends on.
type ObjectStorage interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, name string, public bool) error
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) error
	PublicURL(ctx context.Context, bucket, object string) (string, error)
}

// Open builds the backend selected by cfg. A nil backend with a nil error
// means storage is disabled and uploads go straight to the inline fallback.
func Open(cfg config.StorageConfig, publicBaseURL string) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocal(cfg.LocalDir, publicBaseURL)
	case "rest":
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		return NewRESTClient(cfg.URL, cfg.ServiceKey, timeout)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// EnsureBuckets checks that each named bucket exists, creating missing ones
// as public when create is set. It returns the buckets that are available.
func EnsureBuckets(ctx context.Context, backend ObjectStorage, names []string, create bool) ([]string, error) {
	if backend == nil {
		return nil, errors.New("storage backend is not configured")
	}

	existing, err := backend.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, bucket := range existing {
		known[bucket.Name] = true
	}

	available := make([]string, 0, len(names))
	var errs []error
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if known[name] {
			available = append(available, name)
			continue
		}
		if !create {
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrBucketNotFound))
			continue
		}
		if err := backend.CreateBucket(ctx, name, true); err != nil {
			errs = append(errs, fmt.Errorf("create bucket %s: %w", name, err))
			continue
		}
		available = append(available, name)
	}
	return available, errors.Join(errs...)
}

func cleanObjectPath(object string) (string, error) {
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errors.New("object name is required")
	}
	for _, part := range strings.Split(object, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("invalid object name: %s", object)
		}
	}
	return object, nil
}

func validBucketName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("bucket name is required")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid bucket name: %s", name)
	}
	return nil
}
