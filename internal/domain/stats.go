package domain

// ValueChange is a headline figure with its percent change against the
// preceding period.
type ValueChange struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// PoolSummary is a per-pool row of the global stats.
type PoolSummary struct {
	PoolAddress string  `json:"poolAddress"`
	TokenX      string  `json:"tokenX"`
	TokenY      string  `json:"tokenY"`
	Fee         float64 `json:"fee"`
	Volume      float64 `json:"volume"`
	TVL         float64 `json:"tvl"`
	APY         float64 `json:"apy"`
	LiquidityX  float64 `json:"liquidityX"`
	LiquidityY  float64 `json:"liquidityY"`
	LockedX     float64 `json:"lockedX,omitempty"`
	LockedY     float64 `json:"lockedY,omitempty"`
}

// TokenSummary is a per-token row of the global stats.
type TokenSummary struct {
	Address string  `json:"address"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	TVL     float64 `json:"tvl"`
}

// TotalIntervalStats is the network-wide result for one resolution.
type TotalIntervalStats struct {
	Volume        ValueChange    `json:"volume"`
	TVL           ValueChange    `json:"tvl"`
	Fees          ValueChange    `json:"fees"`
	VolumePlot    []TimePoint    `json:"volumePlot"`
	LiquidityPlot []TimePoint    `json:"liquidityPlot"`
	TokensData    []TokenSummary `json:"tokensData"`
	PoolsData     []PoolSummary  `json:"poolsData"`
}

// TotalStats maps each resolution to the network-wide result.
type TotalStats map[Resolution]*TotalIntervalStats

// NetworkStats is a persisted aggregation result.
type NetworkStats struct {
	Network     string     `json:"network"`
	GeneratedAt int64      `json:"generatedAt"` // Unix milliseconds
	Intervals   TotalStats `json:"intervals"`
}

// TokenAddresses returns every distinct token address across all resolutions
// in first-seen order.
func (s TotalStats) TokenAddresses() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range AllResolutions {
		st, ok := s[r]
		if !ok || st == nil {
			continue
		}
		for _, t := range st.TokensData {
			if _, dup := seen[t.Address]; dup {
				continue
			}
			seen[t.Address] = struct{}{}
			out = append(out, t.Address)
		}
	}
	return out
}
