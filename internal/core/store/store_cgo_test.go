//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/rankshop/rankshop/internal/config"
	"github.com/rankshop/rankshop/internal/core"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func openMigrated(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openMigrated(t)
	require.NoError(t, store.Migrate(context.Background()))

	exists, err := store.hasColumn(context.Background(), "products", "thumbnail_url")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestProductsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.UpsertProduct(ctx, &core.Product{
		ID: "vip", Name: "VIP", PriceCents: 999, DiscountPercent: 10,
		Perks: []string{"/fly", "coloured chat"}, SortOrder: 1, Active: true,
	}))
	require.NoError(t, store.UpsertProduct(ctx, &core.Product{
		ID: "legend", Name: "Legend", PriceCents: 2999, SortOrder: 2, Active: false,
	}))

	active, err := store.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "vip", active[0].ID)
	require.Equal(t, []string{"/fly", "coloured chat"}, active[0].Perks)

	all, err := store.ListProducts(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	price := int64(1299)
	discount := 150
	updated, err := store.UpdateProduct(ctx, "vip", core.ProductUpdate{PriceCents: &price, DiscountPercent: &discount})
	require.NoError(t, err)
	require.Equal(t, int64(1299), updated.PriceCents)
	require.Equal(t, 100, updated.DiscountPercent)

	_, err = store.GetProduct(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOrdersRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	order := &core.Order{
		ID: "o-1", Username: "Steve", Platform: core.PlatformJava, ProductID: "vip", RankName: "VIP",
		OriginalCents: 999, DiscountPercent: 15, PriceCents: 849,
		PaymentProof: "data:image/jpeg;base64,AAAA",
	}
	require.NoError(t, store.InsertOrder(ctx, order))
	require.Equal(t, core.OrderStatusPending, order.Status)

	fetched, err := store.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, "Steve", fetched.Username)
	require.Equal(t, "data:image/jpeg;base64,AAAA", fetched.PaymentProof)

	changedAt := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	updated, err := store.UpdateOrderStatus(ctx, "o-1", core.OrderStatusPending, core.OrderStatusApproved, changedAt)
	require.NoError(t, err)
	require.Equal(t, core.OrderStatusApproved, updated.Status)
	require.True(t, changedAt.Equal(updated.UpdatedAt))

	// A writer that read the order while it was still pending loses.
	current, err := store.UpdateOrderStatus(ctx, "o-1", core.OrderStatusPending, core.OrderStatusRejected, changedAt)
	require.ErrorIs(t, err, ErrStale)
	require.Equal(t, core.OrderStatusApproved, current.Status)

	_, err = store.UpdateOrderStatus(ctx, "missing", core.OrderStatusPending, core.OrderStatusApproved, changedAt)
	require.ErrorIs(t, err, ErrNotFound)

	pending, err := store.ListOrders(ctx, core.OrderQuery{Status: core.OrderStatusPending})
	require.NoError(t, err)
	require.Empty(t, pending)

	counts, err := store.CountOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[core.OrderStatusApproved])

	require.Error(t, store.InsertOrder(ctx, &core.Order{ID: "o-2"}), "payment proof is required")
}

func TestSiteConfigAndSessions(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.SetSiteConfig(ctx, core.SiteConfigServerName, "Blockland"))
	require.NoError(t, store.SetSiteConfig(ctx, core.SiteConfigServerName, "Blockland II"))
	values, err := store.GetSiteConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "Blockland II", values[core.SiteConfigServerName])

	require.NoError(t, store.SaveAdmin(ctx, &core.Admin{Username: "owner", PasswordHash: "hash"}))
	admin, err := store.GetAdmin(ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, "hash", admin.PasswordHash)

	now := time.Now().UTC()
	require.NoError(t, store.CreateSession(ctx, &core.Session{ID: "s1", Username: "owner", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.CreateSession(ctx, &core.Session{ID: "s2", Username: "owner", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}))

	purged, err := store.PurgeExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "owner", session.Username)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRateLimitEntries(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "stale", Attempts: 1, WindowStart: now.Add(-5 * time.Minute), LastSeen: now.Add(-5 * time.Minute),
	}))
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "blocked", Attempts: 3, WindowStart: now.Add(-5 * time.Minute), LastSeen: now.Add(-5 * time.Minute),
		Blocked: true, BlockedUntil: now.Add(5 * time.Minute),
	}))
	require.NoError(t, store.SetRateLimit(ctx, &core.RateLimitEntry{
		Identifier: "fresh", Attempts: 2, WindowStart: now, LastSeen: now,
	}))

	entry, err := store.GetRateLimit(ctx, "blocked")
	require.NoError(t, err)
	require.True(t, entry.Blocked)
	require.Equal(t, now.Add(5*time.Minute), entry.BlockedUntil)

	blocked, err := store.CountRateLimits(ctx, RateLimitQuery{BlockedOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, blocked)

	removed, err := store.SweepRateLimits(ctx, now.Add(-2*time.Minute), now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "blocked", entries[0].Identifier)
	require.Equal(t, "fresh", entries[1].Identifier)

	reset, err := store.ResetRateLimits(ctx, RateLimitQuery{Identifier: "fresh"})
	require.NoError(t, err)
	require.Equal(t, int64(1), reset)

	missing, err := store.GetRateLimit(ctx, "fresh")
	require.NoError(t, err)
	require.Nil(t, missing)
}
