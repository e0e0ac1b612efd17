package api

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// StatsCache keeps the latest stats document per network in memory.
type StatsCache struct {
	store   storage.StatsStore
	entries *xsync.Map[string, *domain.NetworkStats]
}

// NewStatsCache creates a cache reading through to store.
func NewStatsCache(store storage.StatsStore) *StatsCache {
	return &StatsCache{
		store:   store,
		entries: xsync.NewMap[string, *domain.NetworkStats](),
	}
}

// Get returns the cached stats for network, loading them on a miss.
// Returns storage.ErrNotFound if the network was never aggregated.
func (c *StatsCache) Get(ctx context.Context, network string) (*domain.NetworkStats, error) {
	if stats, ok := c.entries.Load(network); ok {
		return stats, nil
	}
	stats, err := c.store.GetStats(ctx, network)
	if err != nil {
		return nil, err
	}
	c.entries.Store(network, stats)
	return stats, nil
}

// Invalidate drops the cached stats for network.
func (c *StatsCache) Invalidate(network string) {
	c.entries.Delete(network)
}
