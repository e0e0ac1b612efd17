package memory

import (
	"context"
	"sort"
	"sync"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.PoolSnapshotSeries // network -> pool key
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]map[string]*domain.PoolSnapshotSeries),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// ListPools returns every pool key with recorded history, sorted.
func (s *SnapshotStore) ListPools(_ context.Context, network string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data[network]))
	for k := range s.data[network] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetSeries retrieves a pool's history. Returns ErrNotFound if absent.
func (s *SnapshotStore) GetSeries(_ context.Context, network, poolKey string) (*domain.PoolSnapshotSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.data[network][poolKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copySeries(series), nil
}

// Append adds snapshots, skipping timestamps already recorded.
func (s *SnapshotStore) Append(_ context.Context, network, poolKey string, series *domain.PoolSnapshotSeries) error {
	if network == "" || poolKey == "" || series == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pools, ok := s.data[network]
	if !ok {
		pools = make(map[string]*domain.PoolSnapshotSeries)
		s.data[network] = pools
	}

	existing, ok := pools[poolKey]
	if !ok {
		existing = &domain.PoolSnapshotSeries{}
		pools[poolKey] = existing
	}
	existing.TokenX = series.TokenX
	existing.TokenY = series.TokenY
	existing.Fee = series.Fee

	seen := make(map[int64]struct{}, len(existing.Snapshots))
	for _, snap := range existing.Snapshots {
		seen[snap.Timestamp] = struct{}{}
	}
	for _, snap := range series.Snapshots {
		if _, dup := seen[snap.Timestamp]; dup {
			continue
		}
		seen[snap.Timestamp] = struct{}{}
		existing.Snapshots = append(existing.Snapshots, copySnapshot(snap))
	}
	return nil
}

func copySeries(in *domain.PoolSnapshotSeries) *domain.PoolSnapshotSeries {
	out := *in
	out.Snapshots = make([]domain.Snapshot, len(in.Snapshots))
	for i, snap := range in.Snapshots {
		out.Snapshots[i] = copySnapshot(snap)
	}
	return &out
}

func copySnapshot(in domain.Snapshot) domain.Snapshot {
	out := in
	if in.LockedX != nil {
		v := *in.LockedX
		out.LockedX = &v
	}
	if in.LockedY != nil {
		v := *in.LockedY
		out.LockedY = &v
	}
	return out
}
