package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// StatsStore implements storage.StatsStore using PostgreSQL.
// Each network keeps its latest result as a JSONB document.
type StatsStore struct {
	pool *Pool
}

// NewStatsStore creates a new StatsStore.
func NewStatsStore(pool *Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatsStore = (*StatsStore)(nil)

// SaveStats replaces the network's latest result.
func (s *StatsStore) SaveStats(ctx context.Context, stats *domain.NetworkStats) error {
	if stats == nil || stats.Network == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(stats.Intervals)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	query := `
		INSERT INTO network_stats (network, generated_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (network) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			payload = EXCLUDED.payload
	`
	if _, err := s.pool.Exec(ctx, query, stats.Network, stats.GeneratedAt, payload); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// GetStats retrieves the network's latest result. Returns ErrNotFound if absent.
func (s *StatsStore) GetStats(ctx context.Context, network string) (*domain.NetworkStats, error) {
	query := `SELECT generated_at, payload FROM network_stats WHERE network = $1`

	stats := &domain.NetworkStats{Network: network}
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, network).Scan(&stats.GeneratedAt, &payload); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}

	if err := json.Unmarshal(payload, &stats.Intervals); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}
