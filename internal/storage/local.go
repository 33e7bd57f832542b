package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores objects under Root/<bucket>/<object>. Public URLs point at the
// server's /media route.
type Local struct {
	Root    string
	BaseURL string
}

// NewLocal creates the root directory if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local storage directory is required")
	}
	// #nosec G301 -- media directories use 0755 so the web server can read them
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Local{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) ListBuckets(_ context.Context) ([]Bucket, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}
	buckets := []Bucket{}
	for _, entry := range entries {
		if entry.IsDir() {
			buckets = append(buckets, Bucket{Name: entry.Name(), Public: true})
		}
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func (l *Local) CreateBucket(_ context.Context, name string, _ bool) error {
	if err := validBucketName(name); err != nil {
		return err
	}
	// #nosec G301 -- see NewLocal
	return os.MkdirAll(filepath.Join(l.Root, name), 0755)
}

func (l *Local) Upload(ctx context.Context, bucket, object, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.objectPath(bucket, object)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(l.Root, bucket)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", bucket, ErrBucketNotFound)
		}
		return err
	}
	// #nosec G301 -- see NewLocal
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	// O_EXCL keeps object names write-once.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

func (l *Local) PublicURL(_ context.Context, bucket, object string) (string, error) {
	if _, err := l.objectPath(bucket, object); err != nil {
		return "", err
	}
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(strings.TrimLeft(object, "/"), "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return fmt.Sprintf("%s/media/%s/%s", l.BaseURL, url.PathEscape(bucket), strings.Join(escaped, "/")), nil
}

// Path resolves an object to its file path for serving.
func (l *Local) Path(bucket, object string) (string, error) {
	return l.objectPath(bucket, object)
}

func (l *Local) objectPath(bucket, object string) (string, error) {
	if err := validBucketName(bucket); err != nil {
		return "", err
	}
	clean, err := cleanObjectPath(object)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, bucket, filepath.FromSlash(clean)), nil
}
