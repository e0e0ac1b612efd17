package jsonfile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore over snapshots.json.
// The whole document is loaded once per network and cached.
type SnapshotStore struct {
	store *Store

	mu    sync.Mutex
	cache map[string]map[string]*domain.PoolSnapshotSeries
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(store *Store) *SnapshotStore {
	return &SnapshotStore{
		store: store,
		cache: make(map[string]map[string]*domain.PoolSnapshotSeries),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// load returns the network's document. Caller holds mu.
func (s *SnapshotStore) load(network string) (map[string]*domain.PoolSnapshotSeries, error) {
	if doc, ok := s.cache[network]; ok {
		return doc, nil
	}

	doc := make(map[string]*domain.PoolSnapshotSeries)
	if err := readJSON(s.store.snapshotsPath(network), &doc); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load snapshots for %s: %w", network, err)
	}
	s.cache[network] = doc
	return doc, nil
}

// ListPools returns every pool key with recorded history, sorted.
func (s *SnapshotStore) ListPools(_ context.Context, network string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(network)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetSeries retrieves a pool's history. Returns ErrNotFound if absent.
func (s *SnapshotStore) GetSeries(_ context.Context, network, poolKey string) (*domain.PoolSnapshotSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(network)
	if err != nil {
		return nil, err
	}
	series, ok := doc[poolKey]
	if !ok || series == nil {
		return nil, storage.ErrNotFound
	}
	out := *series
	out.Snapshots = append([]domain.Snapshot(nil), series.Snapshots...)
	return &out, nil
}

// Append adds snapshots, skipping timestamps already recorded, and rewrites
// the document.
func (s *SnapshotStore) Append(_ context.Context, network, poolKey string, series *domain.PoolSnapshotSeries) error {
	if network == "" || poolKey == "" || series == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(network)
	if err != nil {
		return err
	}

	existing, ok := doc[poolKey]
	if !ok || existing == nil {
		existing = &domain.PoolSnapshotSeries{}
		doc[poolKey] = existing
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
		existing.Snapshots = append(existing.Snapshots, snap)
	}

	if err := writeJSON(s.store.snapshotsPath(network), doc); err != nil {
		delete(s.cache, network)
		return err
	}
	return nil
}
