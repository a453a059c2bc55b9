// Package cache implements the documentation engine's shared description
// cache: an in-process patrickmn/go-cache tier backed optionally by a
// redis tier so multiple engine instances (or repeated runs against the
// same repo) can reuse descriptions instead of re-invoking the LLM.
package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/graphforge/codegraph/internal/config"
)

// Entry is a cached node description, keyed by node id.
type Entry struct {
	NodeID       string    `json:"node_id"`
	Text         string    `json:"text"`
	TemplateName string    `json:"template_name"`
	CachedAt     time.Time `json:"cached_at"`
}

// DescriptionCache is consulted by the documentation engine before issuing
// an LLM call for a node, and populated after a successful one. The local
// tier always exists; the shared tier is nil when no SharedCacheURL is
// configured, and Get/Set degrade to local-only in that case.
type DescriptionCache struct {
	local  *cache.Cache
	shared *Client
	logger *logrus.Entry
}

// NewDescriptionCache builds the cache described by cfg. The shared
// (redis-backed) tier is best-effort: a connection failure is logged and
// the cache falls back to local-only rather than failing the caller.
func NewDescriptionCache(ctx context.Context, cfg config.CacheConfig) *DescriptionCache {
	logger := logrus.StandardLogger().WithField("component", "cache.description")

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	dc := &DescriptionCache{
		local:  cache.New(ttl, 2*ttl),
		logger: logger,
	}

	if cfg.SharedCacheURL != "" {
		client, err := NewClientFromURL(ctx, cfg.SharedCacheURL, ttl)
		if err != nil {
			logger.WithError(err).Warn("shared cache unavailable, continuing local-only")
		} else {
			dc.shared = client
		}
	}

	return dc
}

// Get returns a cached description for nodeID, checking the local tier
// first and the shared tier on a local miss (populating the local tier on
// a shared hit).
func (d *DescriptionCache) Get(ctx context.Context, nodeID string) (Entry, bool) {
	if v, found := d.local.Get(nodeID); found {
		return v.(Entry), true
	}

	if d.shared != nil {
		var entry Entry
		found, err := d.shared.Get(ctx, nodeID, &entry)
		if err != nil {
			d.logger.WithField("node_id", nodeID).WithError(err).Warn("shared cache get failed")
			return Entry{}, false
		}
		if found {
			d.local.SetDefault(nodeID, entry)
			return entry, true
		}
	}

	return Entry{}, false
}

// Set writes a description to both tiers (the shared write is best-effort).
func (d *DescriptionCache) Set(ctx context.Context, entry Entry) {
	d.local.SetDefault(entry.NodeID, entry)

	if d.shared != nil {
		if err := d.shared.Set(ctx, entry.NodeID, entry); err != nil {
			d.logger.WithField("node_id", entry.NodeID).WithError(err).Warn("shared cache set failed")
		}
	}
}

// Flush clears the local tier. The shared tier, if any, is left alone --
// other engine instances may still rely on it.
func (d *DescriptionCache) Flush() {
	d.local.Flush()
}

// ItemCount reports the number of entries currently held locally, used by
// tests and diagnostics to confirm cache-hit behavior.
func (d *DescriptionCache) ItemCount() int {
	return d.local.ItemCount()
}
