package blobstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaferry/internal/blobstore"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Upload(ctx, "categories/a/s1.png", []byte("png")))
	data, err := store.Download(ctx, "categories/a/s1.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	ok, err := store.Exists(ctx, "categories/a/s1.png")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "categories/a/s1.png"))
	require.NoError(t, store.Delete(ctx, "categories/a/s1.png"), "deleting twice is a no-op")

	_, err = store.Download(ctx, "categories/a/s1.png")
	assert.True(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestFSStoreNewNameRenamesOnConflict(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.NewFS(t.TempDir())
	require.NoError(t, err)

	name, err := store.NewName(ctx, "home/s1_a.png")
	require.NoError(t, err)
	assert.Equal(t, "home/s1_a.png", name)

	require.NoError(t, store.Upload(ctx, "home/s1_a.png", []byte("x")))
	require.NoError(t, store.Upload(ctx, "home/s1_a-1.png", []byte("x")))

	name, err = store.NewName(ctx, "home/s1_a.png")
	require.NoError(t, err)
	assert.Equal(t, "home/s1_a-2.png", name)
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	root := t.TempDir()
	store, err := blobstore.NewFS(root)
	require.NoError(t, err)

	p, err := store.Path("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), p)

	_, err = store.Path("  ")
	assert.Error(t, err)
}

func TestFSStoreUploadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := blobstore.NewFS(filepath.Join(dir, "final"))
	require.NoError(t, err)

	local := filepath.Join(dir, "encoded.mp4")
	require.NoError(t, os.WriteFile(local, []byte("video"), 0o644))
	require.NoError(t, store.UploadFile(ctx, "productions/x/s_preview.mp4", local))

	data, err := store.Download(ctx, "productions/x/s_preview.mp4")
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}
