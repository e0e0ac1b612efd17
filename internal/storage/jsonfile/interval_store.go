package jsonfile

import (
	"context"
	"fmt"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// IntervalStore implements storage.IntervalStore with one file per pool.
type IntervalStore struct {
	store *Store
}

// NewIntervalStore creates a new IntervalStore.
func NewIntervalStore(store *Store) *IntervalStore {
	return &IntervalStore{store: store}
}

// Compile-time interface check.
var _ storage.IntervalStore = (*IntervalStore)(nil)

// SavePoolIntervals replaces a pool's interval file.
func (s *IntervalStore) SavePoolIntervals(_ context.Context, network, poolKey string, intervals domain.PoolIntervals) error {
	if network == "" || poolKey == "" || intervals == nil {
		return storage.ErrInvalidInput
	}
	return writeJSON(s.store.intervalsPath(network, poolKey), intervals)
}

// GetPoolIntervals reads a pool's interval file. Returns ErrNotFound if absent.
func (s *IntervalStore) GetPoolIntervals(_ context.Context, network, poolKey string) (domain.PoolIntervals, error) {
	var intervals domain.PoolIntervals
	if err := readJSON(s.store.intervalsPath(network, poolKey), &intervals); err != nil {
		if isNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read intervals for %s: %w", poolKey, err)
	}
	return intervals, nil
}
