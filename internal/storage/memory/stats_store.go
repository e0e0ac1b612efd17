package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// StatsStore is an in-memory implementation of storage.StatsStore.
// Results are held in encoded form so callers never share row slices.
type StatsStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStatsStore creates a new in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{
		data: make(map[string][]byte),
	}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// SaveStats replaces the network's latest result.
func (s *StatsStore) SaveStats(_ context.Context, stats *domain.NetworkStats) error {
	if stats == nil || stats.Network == "" {
		return storage.ErrInvalidInput
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[stats.Network] = raw
	return nil
}

// GetStats retrieves the network's latest result. Returns ErrNotFound if absent.
func (s *StatsStore) GetStats(_ context.Context, network string) (*domain.NetworkStats, error) {
	s.mu.RLock()
	raw, ok := s.data[network]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}

	var stats domain.NetworkStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}
