package aggregation

import "amm-stats/internal/domain"

// FeesFold sums per-pool fee windows into a network fee summary.
// Pools are read back from their persisted intervals after the plot fold.
type FeesFold struct {
	params  Params
	current map[domain.Resolution]float64
	prev    map[domain.Resolution]float64
}

// NewFeesFold starts an empty fee summary.
func (a *GlobalAggregator) NewFeesFold() *FeesFold {
	return &FeesFold{
		params:  a.params,
		current: make(map[domain.Resolution]float64),
		prev:    make(map[domain.Resolution]float64),
	}
}

// AddPool adds one pool's fees. Daily and all compare the pool's last two
// buckets; coarser resolutions sum trailing windows of its daily fees plot.
func (f *FeesFold) AddPool(intervals domain.PoolIntervals) {
	var daily []domain.TimePoint
	if p := intervals[domain.ResolutionDaily]; p != nil {
		daily = p.FeesPlot
	}

	for _, r := range f.params.resolutions() {
		var cur, prev float64
		if usesLatestBuckets(r) {
			if p := intervals[r]; p != nil {
				cur, prev = lastValues(p.FeesPlot)
			}
		} else {
			c, p := trailingSlices(daily, f.params.Window(r))
			cur, prev = sumValues(c), sumValues(p)
		}
		f.current[r] += cur
		f.prev[r] += prev
	}
}

// Result returns the fee summary per resolution.
func (f *FeesFold) Result() map[domain.Resolution]domain.ValueChange {
	out := make(map[domain.Resolution]domain.ValueChange, len(f.current))
	for _, r := range f.params.resolutions() {
		cur, prev := f.current[r], f.prev[r]
		out[r] = domain.ValueChange{Value: cur, Change: PercentChange(cur, prev)}
	}
	return out
}
