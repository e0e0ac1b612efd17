package aggregation

import (
	"amm-stats/internal/domain"
	"amm-stats/internal/interval"
)

// GlobalAggregator combines pools into network-wide plots and summary rows.
type GlobalAggregator struct {
	params   Params
	bucketer *interval.Bucketer
	pools    *PoolAggregator
}

// NewGlobalAggregator creates a GlobalAggregator.
func NewGlobalAggregator(params Params) *GlobalAggregator {
	return &GlobalAggregator{
		params:   params,
		bucketer: interval.NewBucketer(params.Location),
		pools:    NewPoolAggregator(params),
	}
}

// GlobalFold accumulates pools one at a time.
// It is not safe for concurrent use.
type GlobalFold struct {
	agg    *GlobalAggregator
	states map[domain.Resolution]*globalPlotFold
}

// NewFold starts an empty global fold.
func (a *GlobalAggregator) NewFold() *GlobalFold {
	g := &GlobalFold{
		agg:    a,
		states: make(map[domain.Resolution]*globalPlotFold),
	}
	for _, r := range a.params.foldResolutions() {
		g.states[r] = &globalPlotFold{
			bucketer:  a.bucketer,
			res:       r,
			window:    a.params.Window(r),
			hasLocked: a.params.HasLocked,
			poolIdx:   make(map[string]int),
			tokenIdx:  make(map[string]int),
		}
	}
	return g
}

// AddPool folds one pool. intervals are the pool's persisted plots; when nil
// or missing a resolution they are recomputed from snapshots.
func (g *GlobalFold) AddPool(meta domain.PoolMeta, snapshots []domain.Snapshot, intervals domain.PoolIntervals) {
	sorted := make([]domain.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	domain.SortSnapshots(sorted)

	var folded domain.PoolIntervals
	for r, st := range g.states {
		plot := intervals[r]
		if plot == nil {
			if folded == nil {
				folded = g.agg.pools.Fold(sorted, nil)
			}
			plot = folded[r]
		}
		st.addPool(meta, sorted, plot)
	}
}

// Finalize returns the totals for every configured resolution.
// fees holds the fee summary per resolution; see FeesFold.
func (g *GlobalFold) Finalize(fees map[domain.Resolution]domain.ValueChange) domain.TotalStats {
	daily := g.states[domain.ResolutionDaily]
	out := make(domain.TotalStats, len(g.agg.params.resolutions()))
	for _, r := range g.agg.params.resolutions() {
		st := g.states[r]
		out[r] = &domain.TotalIntervalStats{
			Volume:        volumeChange(r, st.volume, daily.volume, st.window),
			TVL:           tvlChange(r, st.liquidity, daily.liquidity, st.window),
			Fees:          fees[r],
			VolumePlot:    nonNil(st.volume),
			LiquidityPlot: nonNil(st.liquidity),
			TokensData:    st.tokenRows(),
			PoolsData:     st.poolRows(),
		}
	}
	return out
}

func nonNil(points []domain.TimePoint) []domain.TimePoint {
	if points == nil {
		return []domain.TimePoint{}
	}
	return points
}

type poolRow struct {
	summary domain.PoolSummary
	tvl     runningMean
}

type tokenRow struct {
	summary    domain.TokenSummary
	liquidity  float64
	timestamps map[int64]struct{}
}

// globalPlotFold is the network-wide state for one resolution.
type globalPlotFold struct {
	bucketer  *interval.Bucketer
	res       domain.Resolution
	window    int
	hasLocked bool

	volume    []domain.TimePoint
	liquidity []domain.TimePoint

	pools    []*poolRow
	poolIdx  map[string]int
	tokens   []*tokenRow
	tokenIdx map[string]int
}

func (g *globalPlotFold) anchor(ts int64) int64 {
	return g.bucketer.Anchor(g.res, ts)
}

// addPool folds one pool's sorted snapshots. plot supplies the pool's
// averaged liquidity per bucket, added to the global bucket once per pool.
func (g *globalPlotFold) addPool(meta domain.PoolMeta, sorted []domain.Snapshot, plot *domain.IntervalPlot) {
	poolLiquidity := make(map[int64]float64)
	if plot != nil {
		for _, p := range plot.LiquidityPlot {
			poolLiquidity[g.anchor(p.Timestamp)] = p.Value
		}
	}

	counted := make(map[int64]bool)
	first := len(sorted) - g.window
	for i, s := range sorted {
		anchor := g.anchor(s.Timestamp)
		idx := bucketIndex(g.volume, anchor, g.anchor)

		if idx >= 0 && g.bucketer.ShouldCompound(g.res, g.volume[idx].Timestamp, s.Timestamp) {
			g.volume[idx].Value += s.Volume()
			if s.Timestamp < g.volume[idx].Timestamp {
				g.volume[idx].Timestamp = s.Timestamp
				g.liquidity[idx].Timestamp = s.Timestamp
			}
		} else {
			idx = insertionIndex(g.volume, s.Timestamp)
			g.volume = insertPoint(g.volume, idx, domain.TimePoint{Timestamp: s.Timestamp, Value: s.Volume()})
			g.liquidity = insertPoint(g.liquidity, idx, domain.TimePoint{Timestamp: s.Timestamp})
		}

		if !counted[anchor] {
			counted[anchor] = true
			v, ok := poolLiquidity[anchor]
			if !ok {
				v = s.TVL()
			}
			g.liquidity[idx].Value += v
		}

		if i >= first {
			g.addPoolSummary(meta, s)
			g.addTokenSummary(meta.TokenX, abs(s.VolumeX.USDValue24), s.LiquidityX.USDValue24, s.Timestamp)
			g.addTokenSummary(meta.TokenY, abs(s.VolumeY.USDValue24), s.LiquidityY.USDValue24, s.Timestamp)
		}
	}
}

func (g *globalPlotFold) addPoolSummary(meta domain.PoolMeta, s domain.Snapshot) {
	i, ok := g.poolIdx[meta.PoolKey]
	if !ok {
		i = len(g.pools)
		g.poolIdx[meta.PoolKey] = i
		g.pools = append(g.pools, &poolRow{summary: domain.PoolSummary{
			PoolAddress: meta.PoolKey,
			TokenX:      meta.TokenX,
			TokenY:      meta.TokenY,
			Fee:         meta.Fee,
		}})
	}
	row := g.pools[i]

	row.summary.Volume += s.Volume()
	row.tvl.add(s.TVL())
	row.summary.TVL = row.tvl.value()
	row.summary.LiquidityX = s.LiquidityX.USDValue24
	row.summary.LiquidityY = s.LiquidityY.USDValue24
	if g.hasLocked {
		if s.LockedX != nil {
			row.summary.LockedX = s.LockedX.USDValue24
		}
		if s.LockedY != nil {
			row.summary.LockedY = s.LockedY.USDValue24
		}
	}
	row.summary.APY = APY(row.summary.Volume, row.summary.TVL, meta.Fee)
}

// addTokenSummary adds one side of a snapshot. Token TVL is the summed
// liquidity over the number of distinct timestamps observed, so pools
// sharing a token add up at each point in time.
func (g *globalPlotFold) addTokenSummary(address string, volume, liquidity float64, ts int64) {
	if address == "" {
		return
	}
	i, ok := g.tokenIdx[address]
	if !ok {
		i = len(g.tokens)
		g.tokenIdx[address] = i
		g.tokens = append(g.tokens, &tokenRow{
			summary:    domain.TokenSummary{Address: address},
			timestamps: make(map[int64]struct{}),
		})
	}
	row := g.tokens[i]

	row.summary.Volume += volume
	row.liquidity += liquidity
	row.timestamps[ts] = struct{}{}
	row.summary.TVL = row.liquidity / float64(len(row.timestamps))
}

func (g *globalPlotFold) poolRows() []domain.PoolSummary {
	out := make([]domain.PoolSummary, len(g.pools))
	for i, p := range g.pools {
		out[i] = p.summary
	}
	return out
}

func (g *globalPlotFold) tokenRows() []domain.TokenSummary {
	out := make([]domain.TokenSummary, len(g.tokens))
	for i, t := range g.tokens {
		out[i] = t.summary
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
