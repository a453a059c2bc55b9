package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/config"
)

func TestDescriptionCache_LocalOnlyRoundTrip(t *testing.T) {
	dc := NewDescriptionCache(context.Background(), config.CacheConfig{TTL: time.Minute})
	ctx := context.Background()

	_, found := dc.Get(ctx, "node1")
	require.False(t, found)

	dc.Set(ctx, Entry{NodeID: "node1", Text: "a function that adds two numbers", TemplateName: "leaf"})

	entry, found := dc.Get(ctx, "node1")
	require.True(t, found)
	require.Equal(t, "a function that adds two numbers", entry.Text)
	require.Equal(t, 1, dc.ItemCount())
}

func TestDescriptionCache_Flush(t *testing.T) {
	dc := NewDescriptionCache(context.Background(), config.CacheConfig{TTL: time.Minute})
	ctx := context.Background()

	dc.Set(ctx, Entry{NodeID: "node1", Text: "x"})
	require.Equal(t, 1, dc.ItemCount())

	dc.Flush()
	require.Equal(t, 0, dc.ItemCount())

	_, found := dc.Get(ctx, "node1")
	require.False(t, found)
}
