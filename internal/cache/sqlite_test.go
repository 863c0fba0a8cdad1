package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeldata/marquee/internal/model"
)

func newTestSQLiteCache(t *testing.T) (*SQLiteCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c, path
}

func matchedEntry(key, title string) model.CacheEntry {
	return model.CacheEntry{
		Key:          key,
		Title:        title,
		Status:       model.StatusMatched,
		MatchedTitle: title,
		Metadata:     &model.MovieMetadata{Title: title, Year: "2008", Genre: "Action"},
		FetchedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteCache_PutAndGet(t *testing.T) {
	c, _ := newTestSQLiteCache(t)
	ctx := context.Background()

	entry := matchedEntry("the dark knight", "The Dark Knight")
	require.NoError(t, c.Put(ctx, entry))

	got, ok, err := c.Get(ctx, "the dark knight")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, model.StatusMatched, got.Status)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "Action", got.Metadata.Genre)
	assert.Equal(t, entry.FetchedAt.Unix(), got.FetchedAt.Unix())
}

func TestSQLiteCache_Missing(t *testing.T) {
	c, _ := newTestSQLiteCache(t)

	got, ok, err := c.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSQLiteCache_NegativeEntry(t *testing.T) {
	c, _ := newTestSQLiteCache(t)
	ctx := context.Background()

	entry := model.CacheEntry{
		Key:       "unknown movie",
		Title:     "Unknown Movie",
		Status:    model.StatusNotFound,
		FetchedAt: time.Now().UTC(),
	}
	require.NoError(t, c.Put(ctx, entry))

	got, ok, err := c.Get(ctx, "unknown movie")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusNotFound, got.Status)
	assert.Nil(t, got.Metadata)
}

func TestSQLiteCache_Overwrite(t *testing.T) {
	c, _ := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, model.CacheEntry{
		Key: "dune", Title: "Dune", Status: model.StatusNotFound, FetchedAt: time.Now().UTC(),
	}))
	require.NoError(t, c.Put(ctx, matchedEntry("dune", "Dune")))

	got, ok, err := c.Get(ctx, "dune")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusMatched, got.Status)
}

func TestSQLiteCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, matchedEntry("inception", "Inception")))
	require.NoError(t, c.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	got, ok, err := reopened.Get(ctx, "inception")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Inception", got.Title)
}

func TestSQLiteCache_StatsAndPurge(t *testing.T) {
	c, _ := newTestSQLiteCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, matchedEntry("a", "A")))
	require.NoError(t, c.Put(ctx, matchedEntry("b", "B")))
	require.NoError(t, c.Put(ctx, model.CacheEntry{
		Key: "c", Title: "C", Status: model.StatusNotFound, FetchedAt: time.Now().UTC(),
	}))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.NotFound)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestMemoryCache_Roundtrip(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, matchedEntry("k", "K")))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusMatched, got.Status)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Matched)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
