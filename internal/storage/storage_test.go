package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/config"
)

func TestUploadKey(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{"plain", "positions.xml", "uploads/u1/positions.xml"},
		{"unix path", "../../etc/positions.xml", "uploads/u1/positions.xml"},
		{"windows path", `C:\exports\positions.xml`, "uploads/u1/positions.xml"},
		{"empty", "", "uploads/u1/upload.xml"},
		{"dot dot", "..", "uploads/u1/upload.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UploadKey("u1", tt.fileName))
		})
	}
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := UploadKey("abc", "positions.xml")
	body := "<root></root>"

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Upload(ctx, key, strings.NewReader(body), int64(len(body)), "application/xml"))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	assert.True(t, strings.HasPrefix(store.GetURL(key), "file://"))
	assert.True(t, strings.HasSuffix(store.GetURL(key), "uploads/abc/positions.xml"))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Download(ctx, key)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalStorage_SizeMismatchLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Upload(ctx, "uploads/x/a.xml", strings.NewReader("short"), 100, "application/xml")
	require.Error(t, err)

	ok, err := store.Exists(ctx, "uploads/x/a.xml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.xml", "/etc/passwd", "a/../../b"} {
		err := store.Upload(ctx, key, strings.NewReader("x"), 1, "")
		assert.Error(t, err, key)
	}
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	s, err := NewStorage(ctx, config.StorageConfig{Type: "local", Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(ctx, config.StorageConfig{Type: "ftp", Bucket: "b"})
	assert.Error(t, err)
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://acc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.eu-west-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType(""))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}
