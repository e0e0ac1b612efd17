package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// ListPools returns every pool key with recorded history, sorted.
func (s *SnapshotStore) ListPools(ctx context.Context, network string) ([]string, error) {
	query := `SELECT pool_key FROM pool_series WHERE network = $1 ORDER BY pool_key`

	rows, err := s.pool.Query(ctx, query, network)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan pool keys: %w", err)
	}
	return keys, nil
}

// GetSeries retrieves a pool's history ordered by timestamp. Returns ErrNotFound if absent.
func (s *SnapshotStore) GetSeries(ctx context.Context, network, poolKey string) (*domain.PoolSnapshotSeries, error) {
	seriesQuery := `
		SELECT token_x, token_x_decimals, token_y, token_y_decimals, fee
		FROM pool_series
		WHERE network = $1 AND pool_key = $2
	`

	var series domain.PoolSnapshotSeries
	err := s.pool.QueryRow(ctx, seriesQuery, network, poolKey).Scan(
		&series.TokenX.Address, &series.TokenX.Decimals,
		&series.TokenY.Address, &series.TokenY.Decimals,
		&series.Fee,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool series: %w", err)
	}

	snapshotQuery := `
		SELECT timestamp_ms, volume_x, volume_y, liquidity_x, liquidity_y, fee_x, fee_y, locked_x, locked_y
		FROM pool_snapshots
		WHERE network = $1 AND pool_key = $2
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, snapshotQuery, network, poolKey)
	if err != nil {
		return nil, fmt.Errorf("get pool snapshots: %w", err)
	}
	defer rows.Close()

	snapshots, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	series.Snapshots = snapshots
	return &series, nil
}

// Append upserts the series metadata and inserts new snapshots in one
// transaction. Already recorded timestamps are skipped.
func (s *SnapshotStore) Append(ctx context.Context, network, poolKey string, series *domain.PoolSnapshotSeries) error {
	if network == "" || poolKey == "" || series == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	seriesQuery := `
		INSERT INTO pool_series (network, pool_key, token_x, token_x_decimals, token_y, token_y_decimals, fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (network, pool_key) DO UPDATE SET
			token_x = EXCLUDED.token_x,
			token_x_decimals = EXCLUDED.token_x_decimals,
			token_y = EXCLUDED.token_y,
			token_y_decimals = EXCLUDED.token_y_decimals,
			fee = EXCLUDED.fee
	`
	_, err = tx.Exec(ctx, seriesQuery,
		network, poolKey,
		series.TokenX.Address, series.TokenX.Decimals,
		series.TokenY.Address, series.TokenY.Decimals,
		series.Fee,
	)
	if err != nil {
		return fmt.Errorf("upsert pool series: %w", err)
	}

	snapshotQuery := `
		INSERT INTO pool_snapshots (
			network, pool_key, timestamp_ms, volume_x, volume_y, liquidity_x, liquidity_y, fee_x, fee_y, locked_x, locked_y
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (network, pool_key, timestamp_ms) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, snap := range series.Snapshots {
		batch.Queue(snapshotQuery,
			network, poolKey, snap.Timestamp,
			snap.VolumeX.USDValue24, snap.VolumeY.USDValue24,
			snap.LiquidityX.USDValue24, snap.LiquidityY.USDValue24,
			snap.FeeX.USDValue24, snap.FeeY.USDValue24,
			lockedValue(snap.LockedX), lockedValue(snap.LockedY),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert pool snapshots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func lockedValue(v *domain.TokenValue) *float64 {
	if v == nil {
		return nil
	}
	f := v.USDValue24
	return &f
}

// scanSnapshots scans snapshot rows.
func scanSnapshots(rows pgx.Rows) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot

	for rows.Next() {
		var snap domain.Snapshot
		var lockedX, lockedY *float64
		err := rows.Scan(
			&snap.Timestamp,
			&snap.VolumeX.USDValue24, &snap.VolumeY.USDValue24,
			&snap.LiquidityX.USDValue24, &snap.LiquidityY.USDValue24,
			&snap.FeeX.USDValue24, &snap.FeeY.USDValue24,
			&lockedX, &lockedY,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if lockedX != nil {
			snap.LockedX = &domain.TokenValue{USDValue24: *lockedX}
		}
		if lockedY != nil {
			snap.LockedY = &domain.TokenValue{USDValue24: *lockedY}
		}
		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}
