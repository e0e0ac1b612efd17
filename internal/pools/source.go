// Package pools enumerates the live pools of a network.
package pools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// Source lists the pools that are live for one network.
type Source interface {
	ListPools(ctx context.Context) ([]domain.PoolMeta, error)
}

// SnapshotSource lists pools recorded in a snapshot store plus statically
// configured pools.
type SnapshotSource struct {
	store   storage.SnapshotStore
	network string
	static  []domain.PoolMeta
}

// NewSnapshotSource creates a SnapshotSource for network.
func NewSnapshotSource(store storage.SnapshotStore, network string, static []domain.PoolMeta) *SnapshotSource {
	return &SnapshotSource{store: store, network: network, static: static}
}

// ListPools returns recorded and static pools sorted by key. Static metadata
// fills fields the recorded series leaves empty.
func (s *SnapshotSource) ListPools(ctx context.Context) ([]domain.PoolMeta, error) {
	keys, err := s.store.ListPools(ctx, s.network)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	byKey := make(map[string]domain.PoolMeta, len(keys)+len(s.static))
	for _, key := range keys {
		series, err := s.store.GetSeries(ctx, s.network, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("get series %s: %w", key, err)
		}
		byKey[key] = domain.MetaFromSeries(key, series)
	}

	for _, p := range s.static {
		meta, ok := byKey[p.PoolKey]
		if !ok {
			byKey[p.PoolKey] = p
			continue
		}
		if meta.TokenX == "" {
			meta.TokenX = p.TokenX
		}
		if meta.TokenY == "" {
			meta.TokenY = p.TokenY
		}
		if meta.Fee == 0 {
			meta.Fee = p.Fee
		}
		byKey[p.PoolKey] = meta
	}

	out := make([]domain.PoolMeta, 0, len(byKey))
	for _, meta := range byKey {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolKey < out[j].PoolKey })
	return out, nil
}
