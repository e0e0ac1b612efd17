package domain

import (
	"math"
	"sort"
)

// TokenValue is one side of a pool measurement valued in USD.
type TokenValue struct {
	USDValue24 float64 `json:"usdValue24"`
}

// Snapshot is one point-in-time measurement of a pool.
// Volume and fee values are deltas accrued since the pool's previous
// snapshot, so summing them over a bucket gives the bucket's total.
// Liquidity and locked values are levels at Timestamp.
type Snapshot struct {
	Timestamp  int64       `json:"timestamp"` // Unix milliseconds
	VolumeX    TokenValue  `json:"volumeX"`
	VolumeY    TokenValue  `json:"volumeY"`
	LiquidityX TokenValue  `json:"liquidityX"`
	LiquidityY TokenValue  `json:"liquidityY"`
	FeeX       TokenValue  `json:"feeX"`
	FeeY       TokenValue  `json:"feeY"`
	LockedX    *TokenValue `json:"lockedX,omitempty"` // present only on networks with locked liquidity
	LockedY    *TokenValue `json:"lockedY,omitempty"`
}

// Volume returns the combined swap volume of both sides.
func (s Snapshot) Volume() float64 {
	return math.Abs(s.VolumeX.USDValue24 + s.VolumeY.USDValue24)
}

// TVL returns the combined liquidity of both sides.
func (s Snapshot) TVL() float64 {
	return math.Abs(s.LiquidityX.USDValue24 + s.LiquidityY.USDValue24)
}

// Fees returns the combined fees of both sides.
func (s Snapshot) Fees() float64 {
	return math.Abs(s.FeeX.USDValue24 + s.FeeY.USDValue24)
}

// ZeroSnapshot returns an all-zero snapshot at ts.
// Used for pools that exist live but have no recorded history yet.
func ZeroSnapshot(ts int64) Snapshot {
	return Snapshot{Timestamp: ts}
}

// TokenRef identifies a pool token.
type TokenRef struct {
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// PoolSnapshotSeries is the recorded history of a single pool.
type PoolSnapshotSeries struct {
	TokenX    TokenRef   `json:"tokenX"`
	TokenY    TokenRef   `json:"tokenY"`
	Fee       float64    `json:"fee,omitempty"` // fee tier in percent, when recorded with the series
	Snapshots []Snapshot `json:"snapshots"`
}

// Sorted returns a copy of the snapshots ordered by timestamp ascending.
// Snapshots with equal timestamps keep their recorded order.
func (s *PoolSnapshotSeries) Sorted() []Snapshot {
	if s == nil {
		return nil
	}
	out := make([]Snapshot, len(s.Snapshots))
	copy(out, s.Snapshots)
	SortSnapshots(out)
	return out
}

// SortSnapshots orders snapshots by timestamp ascending in place.
func SortSnapshots(snaps []Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp < snaps[j].Timestamp
	})
}
