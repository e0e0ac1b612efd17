package storage

import (
	"context"
	"time"

	"amm-stats/internal/domain"
)

// SnapshotStore provides access to recorded pool snapshot histories.
type SnapshotStore interface {
	// ListPools returns every pool key with recorded history, sorted.
	ListPools(ctx context.Context, network string) ([]string, error)

	// GetSeries retrieves a pool's history. Returns ErrNotFound if the pool has none.
	GetSeries(ctx context.Context, network, poolKey string) (*domain.PoolSnapshotSeries, error)

	// Append adds snapshots to a pool's history, creating it if needed.
	// Token and fee metadata of an existing series is overwritten.
	// Snapshots whose timestamp is already recorded are ignored.
	Append(ctx context.Context, network, poolKey string, series *domain.PoolSnapshotSeries) error
}

// IntervalStore provides access to per-pool interval plots.
type IntervalStore interface {
	// SavePoolIntervals replaces a pool's interval plots.
	SavePoolIntervals(ctx context.Context, network, poolKey string, intervals domain.PoolIntervals) error

	// GetPoolIntervals retrieves a pool's interval plots. Returns ErrNotFound if never saved.
	GetPoolIntervals(ctx context.Context, network, poolKey string) (domain.PoolIntervals, error)
}

// StatsStore provides access to network-wide aggregation results.
type StatsStore interface {
	// SaveStats replaces the network's latest result.
	SaveStats(ctx context.Context, stats *domain.NetworkStats) error

	// GetStats retrieves the network's latest result. Returns ErrNotFound if none.
	GetStats(ctx context.Context, network string) (*domain.NetworkStats, error)
}

// AccountCache caches on-chain account lookups between runs.
type AccountCache interface {
	// Get returns the cached account data. found is false on a cache miss.
	// A hit with nil data means the account was recorded as missing.
	Get(ctx context.Context, network, address string) (data []byte, found bool, err error)

	// Set records account data, nil for a missing account, for ttl.
	Set(ctx context.Context, network, address string, data []byte, ttl time.Duration) error
}
