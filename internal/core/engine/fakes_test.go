package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/store"
	"github.com/rankshop/rankshop/internal/notify"
	"github.com/rankshop/rankshop/internal/upload"
)

type fakeStore struct {
	mu        sync.Mutex
	products  map[string]core.Product
	orders    map[string]core.Order
	site      map[string]string
	insertErr error
	// beforeUpdate runs once inside the next UpdateOrderStatus.
	beforeUpdate func(orders map[string]core.Order)
}

func newFakeStore(products ...core.Product) *fakeStore {
	f := &fakeStore{
		products: map[string]core.Product{},
		orders:   map[string]core.Order{},
		site:     map[string]string{},
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeStore) ListProducts(_ context.Context, activeOnly bool) ([]core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Product, 0, len(f.products))
	for _, p := range f.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, id string, update core.ProductUpdate) (*core.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.PriceCents != nil {
		p.PriceCents = *update.PriceCents
	}
	if update.DiscountPercent != nil {
		p.DiscountPercent = *update.DiscountPercent
	}
	if update.ImageURL != nil {
		p.ImageURL = *update.ImageURL
	}
	if update.ThumbnailURL != nil {
		p.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Active != nil {
		p.Active = *update.Active
	}
	f.products[id] = p
	return &p, nil
}

func (f *fakeStore) GetSiteConfig(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.site))
	for k, v := range f.site {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SetSiteConfig(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.site[key] = value
	return nil
}

func (f *fakeStore) InsertOrder(_ context.Context, order *core.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.orders[order.ID] = *order
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (*core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, id string, from, to core.OrderStatus, at time.Time) (*core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeUpdate != nil {
		f.beforeUpdate(f.orders)
		f.beforeUpdate = nil
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	if o.Status != from {
		return &o, fmt.Errorf("order %s is %s: %w", id, o.Status, store.ErrStale)
	}
	o.Status = to
	o.UpdatedAt = at
	f.orders[id] = o
	return &o, nil
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

type bucketStub struct {
	name  string
	fail  bool
	calls int
}

func (b *bucketStub) Name() string { return "bucket:" + b.name }

func (b *bucketStub) Store(_ context.Context, object string, _ upload.Payload) (string, error) {
	b.calls++
	if b.fail {
		return "", errors.New("bucket " + b.name + " not found")
	}
	return "https://cdn.example.test/" + b.name + "/" + object, nil
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func testClock() func() time.Time {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return func() time.Time { return now }
}
