package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUploadAndPublicURL(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocal(t.TempDir(), "http://shop.test/")
	require.NoError(t, err)

	require.NoError(t, local.CreateBucket(ctx, "payment-proofs", true))
	require.NoError(t, local.Upload(ctx, "payment-proofs", "orders/1-abc.png", "image/png", []byte("png")))

	path, err := local.Path("payment-proofs", "orders/1-abc.png")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	url, err := local.PublicURL(ctx, "payment-proofs", "orders/1-abc.png")
	require.NoError(t, err)
	assert.Equal(t, "http://shop.test/media/payment-proofs/orders/1-abc.png", url)

	err = local.Upload(ctx, "payment-proofs", "orders/1-abc.png", "image/png", []byte("again"))
	require.Error(t, err, "objects are write-once")
}

func TestLocalUploadMissingBucket(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	err = local.Upload(context.Background(), "absent", "a.png", "image/png", []byte("x"))
	require.ErrorIs(t, err, ErrBucketNotFound)
}

func TestLocalRejectsTraversal(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	_, err = local.Path("uploads", "../../etc/passwd")
	require.Error(t, err)
	_, err = local.Path("../x", "a.png")
	require.Error(t, err)
}

func TestEnsureBuckets(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, local.CreateBucket(ctx, "uploads", true))

	available, err := EnsureBuckets(ctx, local, []string{"payment-proofs", "uploads"}, false)
	require.ErrorIs(t, err, ErrBucketNotFound)
	assert.Equal(t, []string{"uploads"}, available)

	available, err = EnsureBuckets(ctx, local, []string{"payment-proofs", "uploads"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"payment-proofs", "uploads"}, available)

	buckets, err := local.ListBuckets(ctx)
	require.NoError(t, err)
	assert.Len(t, buckets, 2)
}
