package aggregation

import (
	"time"

	"amm-stats/internal/domain"
)

var day0 = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// dayMs returns noon UTC of day d (0-based) plus h hours.
func dayMs(d, h int) int64 {
	return day0.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour).UnixMilli()
}

// snap builds a snapshot with volume, tvl and fees split evenly across sides.
func snap(ts int64, volume, tvl, fees float64) domain.Snapshot {
	return domain.Snapshot{
		Timestamp:  ts,
		VolumeX:    domain.TokenValue{USDValue24: volume / 2},
		VolumeY:    domain.TokenValue{USDValue24: volume / 2},
		LiquidityX: domain.TokenValue{USDValue24: tvl / 2},
		LiquidityY: domain.TokenValue{USDValue24: tvl / 2},
		FeeX:       domain.TokenValue{USDValue24: fees / 2},
		FeeY:       domain.TokenValue{USDValue24: fees / 2},
	}
}

// dailySeries returns n daily snapshots with constant values.
func dailySeries(n int, volume, tvl, fees float64) []domain.Snapshot {
	out := make([]domain.Snapshot, n)
	for i := range out {
		out[i] = snap(dayMs(i, 0), volume, tvl, fees)
	}
	return out
}

func values(points []domain.TimePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
