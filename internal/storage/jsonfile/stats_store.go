package jsonfile

import (
	"context"
	"fmt"
	"os"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// StatsStore implements storage.StatsStore over stats.json.
// The file holds only the per-resolution totals; the generation time is the
// file's modification time.
type StatsStore struct {
	store *Store
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(store *Store) *StatsStore {
	return &StatsStore{store: store}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// SaveStats replaces the network's stats file.
func (s *StatsStore) SaveStats(_ context.Context, stats *domain.NetworkStats) error {
	if stats == nil || stats.Network == "" {
		return storage.ErrInvalidInput
	}
	return writeJSON(s.store.statsPath(stats.Network), stats.Intervals)
}

// GetStats reads the network's stats file. Returns ErrNotFound if absent.
func (s *StatsStore) GetStats(_ context.Context, network string) (*domain.NetworkStats, error) {
	path := s.store.statsPath(network)
	info, err := os.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("stat stats for %s: %w", network, err)
	}

	var intervals domain.TotalStats
	if err := readJSON(path, &intervals); err != nil {
		return nil, fmt.Errorf("read stats for %s: %w", network, err)
	}
	return &domain.NetworkStats{
		Network:     network,
		GeneratedAt: info.ModTime().UnixMilli(),
		Intervals:   intervals,
	}, nil
}
