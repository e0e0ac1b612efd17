package memory

import (
	"context"
	"sync"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// IntervalStore is an in-memory implementation of storage.IntervalStore.
type IntervalStore struct {
	mu   sync.RWMutex
	data map[string]domain.PoolIntervals // keyed by network|pool
}

// NewIntervalStore creates a new in-memory interval store.
func NewIntervalStore() *IntervalStore {
	return &IntervalStore{
		data: make(map[string]domain.PoolIntervals),
	}
}

// Compile-time interface check.
var _ storage.IntervalStore = (*IntervalStore)(nil)

func intervalKey(network, poolKey string) string {
	return network + "|" + poolKey
}

// SavePoolIntervals replaces a pool's interval plots.
func (s *IntervalStore) SavePoolIntervals(_ context.Context, network, poolKey string, intervals domain.PoolIntervals) error {
	if network == "" || poolKey == "" || intervals == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[intervalKey(network, poolKey)] = intervals.Clone()
	return nil
}

// GetPoolIntervals retrieves a pool's interval plots. Returns ErrNotFound if absent.
func (s *IntervalStore) GetPoolIntervals(_ context.Context, network, poolKey string) (domain.PoolIntervals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intervals, ok := s.data[intervalKey(network, poolKey)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return intervals.Clone(), nil
}
