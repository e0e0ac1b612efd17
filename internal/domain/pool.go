package domain

import (
	"encoding/json"
	"strings"
)

// PoolMeta describes a live pool: its key, token pair and fee tier.
type PoolMeta struct {
	PoolKey string  `json:"poolKey"`
	TokenX  string  `json:"tokenX"`
	TokenY  string  `json:"tokenY"`
	Fee     float64 `json:"fee"` // percent, e.g. 0.3
}

// FeeTier is the fee component of a structured pool key.
type FeeTier struct {
	Fee         json.Number `json:"fee"`
	TickSpacing json.Number `json:"tickSpacing"`
}

// StructuredPoolKey is the pool key form used on networks without pool
// addresses, serialized as JSON.
type StructuredPoolKey struct {
	TokenX  string  `json:"tokenX"`
	TokenY  string  `json:"tokenY"`
	FeeTier FeeTier `json:"feeTier"`
}

// FeeScale converts a structured fee tier value into percent.
// Tier fees are stored with 12 decimals where 1e12 is 100%.
const FeeScale = 1e10

// ParsePoolKey decodes a structured pool key. ok is false for plain addresses.
func ParsePoolKey(key string) (StructuredPoolKey, bool) {
	var k StructuredPoolKey
	if !strings.HasPrefix(strings.TrimSpace(key), "{") {
		return k, false
	}
	if err := json.Unmarshal([]byte(key), &k); err != nil {
		return k, false
	}
	return k, k.TokenX != "" && k.TokenY != ""
}

// FeePercent returns the tier fee in percent.
func (k StructuredPoolKey) FeePercent() float64 {
	f, err := k.FeeTier.Fee.Float64()
	if err != nil {
		return 0
	}
	return f / FeeScale
}

// MetaFromSeries builds pool metadata from a recorded series.
// Structured keys take precedence over series metadata for the fee.
func MetaFromSeries(poolKey string, s *PoolSnapshotSeries) PoolMeta {
	meta := PoolMeta{PoolKey: poolKey}
	if s != nil {
		meta.TokenX = s.TokenX.Address
		meta.TokenY = s.TokenY.Address
		meta.Fee = s.Fee
	}
	if k, ok := ParsePoolKey(poolKey); ok {
		meta.TokenX = k.TokenX
		meta.TokenY = k.TokenY
		meta.Fee = k.FeePercent()
	}
	return meta
}
