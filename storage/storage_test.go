package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postdesk/models"
)

type failingBackend struct {
	getErr error
	setErr error
}

func (f failingBackend) Get(context.Context, string) (string, bool, error) { return "", false, f.getErr }
func (f failingBackend) Set(context.Context, string, string) error          { return f.setErr }
func (f failingBackend) Close() error                                       { return nil }

func samplePosts() []models.Post {
	img := "https://example.com/a.png"
	deletedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []models.Post{
		{
			ID: "1", Title: "A", Description: "d", Content: "c", Category: "Technology",
			Author: "X", Image: &img, PublishDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			Status: models.StatusDraft,
		},
		{
			ID: "2", Title: "B", Description: "d", Content: "c", Category: "Business",
			Author: "Y", PublishDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			Status: models.StatusPublished, Deleted: true, DeletedAt: &deletedAt,
		},
	}
}

func TestAdapterFirstRunReturnsNil(t *testing.T) {
	a := NewAdapter(NewMemoryBackend(), "")

	snap, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, "blogs", a.ContentKey())
	assert.Equal(t, "blogs_schema_version", a.VersionKey())
}

func TestAdapterSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryBackend(), "posts")

	posts := samplePosts()
	require.NoError(t, a.Save(ctx, posts))
	require.NoError(t, a.SaveVersion(ctx, 2))

	snap, err := a.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Version)

	decoded, err := DecodePosts(snap.Raw)
	require.NoError(t, err)
	assert.Equal(t, posts, decoded)
}

func TestAdapterWireFormat(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := NewAdapter(backend, "")

	require.NoError(t, a.Save(ctx, samplePosts()[:1]))
	require.NoError(t, a.SaveVersion(ctx, 1))

	raw, ok, _ := backend.Get(ctx, "blogs")
	require.True(t, ok)
	assert.JSONEq(t, `[{
		"id":"1","title":"A","description":"d","content":"c","category":"Technology",
		"author":"X","image":"https://example.com/a.png","publishDate":"2023-01-01T00:00:00Z",
		"status":"draft","deleted":false,"deletedAt":null}]`, raw)

	v, ok, _ := backend.Get(ctx, "blogs_schema_version")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestAdapterSaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := NewAdapter(backend, "")

	require.NoError(t, a.Save(ctx, nil))
	raw, _, _ := backend.Get(ctx, "blogs")
	assert.Equal(t, "[]", raw)
}

func TestAdapterMissingVersionIsZero(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, "blogs", "[]"))

	snap, err := NewAdapter(backend, "").Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Version)
}

func TestAdapterBadVersionIsStorageError(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, "blogs", "[]"))
	require.NoError(t, backend.Set(ctx, "blogs_schema_version", "abc"))

	_, err := NewAdapter(backend, "").Load(ctx)
	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "blogs_schema_version", serr.Key)
}

func TestAdapterWrapsBackendFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	a := NewAdapter(failingBackend{getErr: boom, setErr: boom}, "")

	_, err := a.Load(ctx)
	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "read", serr.Op)
	assert.ErrorIs(t, err, boom)

	err = a.Save(ctx, samplePosts())
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "write", serr.Op)
	assert.ErrorIs(t, err, boom)

	err = a.SaveVersion(ctx, 1)
	assert.ErrorIs(t, err, boom)
}

func TestAdapterPagination(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	a := NewAdapter(backend, "")

	_, ok, err := a.LoadPagination(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.SavePagination(ctx, models.PaginationPrefs{Page: 3, Size: 20}))
	prefs, ok, err := a.LoadPagination(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.PaginationPrefs{Page: 3, Size: 20}, prefs)

	raw, _, _ := backend.Get(ctx, "blogs_pagination")
	assert.JSONEq(t, `{"page":3,"size":20}`, raw)

	require.NoError(t, backend.Set(ctx, "blogs_pagination", "{oops"))
	_, ok, err = a.LoadPagination(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodePostsRejectsGarbage(t *testing.T) {
	_, err := DecodePosts([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", "v1"))
	require.NoError(t, b.Set(ctx, "k", "v2"))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestSQLiteBackendSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "posts.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	a := NewAdapter(b, "")
	require.NoError(t, a.Save(ctx, samplePosts()))
	require.NoError(t, a.SaveVersion(ctx, 2))
	require.NoError(t, a.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	t.Cleanup(func() { b2.Close() })
	snap, err := NewAdapter(b2, "").Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.Version)

	decoded, err := DecodePosts(snap.Raw)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	b, err := NewRedisBackend(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	key := "postdesk_test_" + time.Now().Format("150405.000000000")
	_, ok, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, key, "value"))
	v, ok, err := b.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}
