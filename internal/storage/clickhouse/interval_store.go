package clickhouse

import (
	"context"
	"fmt"
	"time"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage"
)

// Metric names stored in the metric column.
const (
	metricVolume    = "volume"
	metricLiquidity = "liquidity"
	metricFees      = "fees"
)

// IntervalStore implements storage.IntervalStore using ClickHouse.
// Every save writes a new version of the pool's rows; reads return only the
// latest version and older versions are removed after each save.
type IntervalStore struct {
	conn *Conn
	now  func() time.Time
}

// NewIntervalStore creates a new IntervalStore.
func NewIntervalStore(conn *Conn) *IntervalStore {
	return &IntervalStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.IntervalStore = (*IntervalStore)(nil)

// SavePoolIntervals writes a new version of the pool's plots.
func (s *IntervalStore) SavePoolIntervals(ctx context.Context, network, poolKey string, intervals domain.PoolIntervals) error {
	if network == "" || poolKey == "" || intervals == nil {
		return storage.ErrInvalidInput
	}

	version := uint64(s.now().UnixNano())

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_intervals (
			network, pool_key, version, resolution, metric, timestamp_ms, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	rows := 0
	for r, plot := range intervals {
		if plot == nil {
			continue
		}
		for metric, points := range map[string][]domain.TimePoint{
			metricVolume:    plot.VolumePlot,
			metricLiquidity: plot.LiquidityPlot,
			metricFees:      plot.FeesPlot,
		} {
			for _, p := range points {
				if err := batch.Append(network, poolKey, version, string(r), metric, p.Timestamp, p.Value); err != nil {
					return fmt.Errorf("append to batch: %w", err)
				}
				rows++
			}
		}
	}

	if rows == 0 {
		return batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	err = s.conn.Exec(ctx, `
		DELETE FROM pool_intervals
		WHERE network = ? AND pool_key = ? AND version < ?
	`, network, poolKey, version)
	if err != nil {
		return fmt.Errorf("delete stale intervals: %w", err)
	}

	return nil
}

// GetPoolIntervals retrieves the latest saved plots. Returns ErrNotFound if none.
func (s *IntervalStore) GetPoolIntervals(ctx context.Context, network, poolKey string) (domain.PoolIntervals, error) {
	query := `
		SELECT resolution, metric, timestamp_ms, value
		FROM pool_intervals
		WHERE network = ? AND pool_key = ? AND version = (
			SELECT max(version) FROM pool_intervals WHERE network = ? AND pool_key = ?
		)
		ORDER BY resolution, metric, timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, network, poolKey, network, poolKey)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	intervals, err := scanIntervals(rows)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, storage.ErrNotFound
	}
	return intervals, nil
}

// chRows is the subset of driver.Rows used for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanIntervals rebuilds plots from rows ordered by timestamp.
func scanIntervals(rows chRows) (domain.PoolIntervals, error) {
	intervals := make(domain.PoolIntervals)

	for rows.Next() {
		var resolution, metric string
		var p domain.TimePoint
		if err := rows.Scan(&resolution, &metric, &p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan interval row: %w", err)
		}

		r := domain.Resolution(resolution)
		plot, ok := intervals[r]
		if !ok {
			plot = &domain.IntervalPlot{}
			intervals[r] = plot
		}
		switch metric {
		case metricVolume:
			plot.VolumePlot = append(plot.VolumePlot, p)
		case metricLiquidity:
			plot.LiquidityPlot = append(plot.LiquidityPlot, p)
		case metricFees:
			plot.FeesPlot = append(plot.FeesPlot, p)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interval rows: %w", err)
	}

	return intervals, nil
}
