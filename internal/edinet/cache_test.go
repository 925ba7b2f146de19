package edinet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCacheRoundTrip(t *testing.T) {
	cache, err := NewListCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	_, ok := cache.Get(date)
	assert.False(t, ok, "absence of an entry is not an error")

	raw := []byte(`{"results": []}`)
	require.NoError(t, cache.Set(date, raw))

	got, ok := cache.Get(date)
	require.True(t, ok)
	assert.Equal(t, raw, got)

	// A different day is a different key.
	_, ok = cache.Get(date.AddDate(0, 0, 1))
	assert.False(t, ok)
}
