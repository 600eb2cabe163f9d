package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/pkg/interceptor"
	"github.com/harun/loom/pkg/llm"
)

func sampleEntry(text string) *interceptor.Entry {
	return &interceptor.Entry{
		Response: &llm.Response{
			ID:         "resp-1",
			Model:      "claude-3-5-sonnet-20241022",
			Content:    text,
			StopReason: llm.StopEndTurn,
			Usage:      &llm.Usage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer sqlite.Close()

	lru, err := NewLRU(8)
	require.NoError(t, err)

	stores := map[string]interceptor.Store{
		"memory": NewMemory(),
		"lru":    lru,
		"sqlite": sqlite,
	}

	for name, store := range stores {
		t.Run(name+" should round trip entries", func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "k", sampleEntry("hello")))

			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "hello", got.Response.Text())
			assert.Equal(t, 12, got.Response.Usage.InputTokens)
		})

		t.Run(name+" should miss unknown keys", func(t *testing.T) {
			got, err := store.Get(ctx, "absent")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run(name+" should delete entries", func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "gone", sampleEntry("x")))
			require.NoError(t, store.Delete(ctx, "gone"))

			got, err := store.Get(ctx, "gone")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("should evict the least recently used entry", func(t *testing.T) {
		store, err := NewLRU(2)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "a", sampleEntry("a")))
		require.NoError(t, store.Set(ctx, "b", sampleEntry("b")))

		// Touch "a" so "b" becomes the eviction candidate.
		_, err = store.Get(ctx, "a")
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "c", sampleEntry("c")))

		gone, err := store.Get(ctx, "b")
		require.NoError(t, err)
		assert.Nil(t, gone)

		kept, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.NotNil(t, kept)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("should fall back to the default capacity", func(t *testing.T) {
		store, err := NewLRU(0)
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, "a", sampleEntry("a")))
		assert.Equal(t, 1, store.Len())
	})
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist entries across reopens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")

		store, err := NewSQLite(path)
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, "k", sampleEntry("persisted")))
		require.NoError(t, store.Close())

		reopened, err := NewSQLite(path)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.Get(ctx, "k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "persisted", got.Response.Text())
	})

	t.Run("should keep expiry timestamps", func(t *testing.T) {
		store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		defer store.Close()

		expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)
		entry := sampleEntry("x")
		entry.ExpiresAt = expires
		require.NoError(t, store.Set(ctx, "k", entry))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.ExpiresAt.Equal(expires))
	})

	t.Run("should keep tool calls through serialization", func(t *testing.T) {
		store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		defer store.Close()

		entry := sampleEntry("calling")
		entry.Response.StopReason = llm.StopToolUse
		entry.Response.ToolCalls = []llm.ToolCall{{
			ID:        "call-1",
			Name:      "search",
			Arguments: map[string]interface{}{"query": "weather"},
		}}
		require.NoError(t, store.Set(ctx, "k", entry))

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.Len(t, got.Response.ToolCalls, 1)
		assert.Equal(t, "search", got.Response.ToolCalls[0].Name)
		assert.Equal(t, "weather", got.Response.ToolCalls[0].Arguments["query"])
	})

	t.Run("should purge expired entries", func(t *testing.T) {
		store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		defer store.Close()

		stale := sampleEntry("stale")
		stale.ExpiresAt = time.Now().Add(-time.Minute)
		fresh := sampleEntry("fresh")
		fresh.ExpiresAt = time.Now().Add(time.Hour)
		forever := sampleEntry("forever")

		require.NoError(t, store.Set(ctx, "stale", stale))
		require.NoError(t, store.Set(ctx, "fresh", fresh))
		require.NoError(t, store.Set(ctx, "forever", forever))

		purged, err := store.Purge(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, purged)

		got, err := store.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.NotNil(t, got)

		got, err = store.Get(ctx, "forever")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("should reject an empty path", func(t *testing.T) {
		_, err := NewSQLite("")
		require.Error(t, err)
	})
}
