package aggregation

import (
	"amm-stats/internal/domain"
	"amm-stats/internal/interval"
)

// PoolAggregator folds one pool's snapshots into per-resolution plots.
type PoolAggregator struct {
	params   Params
	bucketer *interval.Bucketer
}

// NewPoolAggregator creates a PoolAggregator.
func NewPoolAggregator(params Params) *PoolAggregator {
	return &PoolAggregator{
		params:   params,
		bucketer: interval.NewBucketer(params.Location),
	}
}

// Fold folds snapshots into prior and returns the updated intervals.
// prior is not modified and may be nil. Snapshots may arrive in any order.
// An empty snapshot list leaves prior unchanged, except that misaligned
// prior plots are dropped.
func (a *PoolAggregator) Fold(snapshots []domain.Snapshot, prior domain.PoolIntervals) domain.PoolIntervals {
	sorted := make([]domain.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	domain.SortSnapshots(sorted)

	out := make(domain.PoolIntervals, len(a.params.foldResolutions()))
	for _, r := range a.params.foldResolutions() {
		var base *domain.IntervalPlot
		if prior != nil {
			base = prior[r]
		}
		f := newPoolPlotFold(a.bucketer, r, base)
		for _, s := range sorted {
			f.add(s)
		}
		out[r] = f.plot
	}
	return out
}

// poolPlotFold is the mutable state for one pool at one resolution.
type poolPlotFold struct {
	bucketer *interval.Bucketer
	res      domain.Resolution
	plot     *domain.IntervalPlot
	tvl      map[int64]*runningMean // by anchor
}

func newPoolPlotFold(b *interval.Bucketer, r domain.Resolution, base *domain.IntervalPlot) *poolPlotFold {
	// Misaligned prior plots cannot be extended in place; rebuild instead.
	if !base.Aligned() {
		base = nil
	}
	f := &poolPlotFold{
		bucketer: b,
		res:      r,
		plot:     base.Clone(),
		tvl:      make(map[int64]*runningMean),
	}
	// An existing bucket counts as one observation of its averaged value.
	for _, p := range f.plot.LiquidityPlot {
		m := &runningMean{}
		m.add(p.Value)
		f.tvl[f.anchor(p.Timestamp)] = m
	}
	return f
}

func (f *poolPlotFold) anchor(ts int64) int64 {
	return f.bucketer.Anchor(f.res, ts)
}

func (f *poolPlotFold) add(s domain.Snapshot) {
	anchor := f.anchor(s.Timestamp)
	idx := bucketIndex(f.plot.VolumePlot, anchor, f.anchor)

	if idx >= 0 && f.bucketer.ShouldCompound(f.res, f.plot.VolumePlot[idx].Timestamp, s.Timestamp) {
		f.plot.VolumePlot[idx].Value += s.Volume()
		f.plot.FeesPlot[idx].Value += s.Fees()

		m := f.tvl[anchor]
		m.add(s.TVL())
		f.plot.LiquidityPlot[idx].Value = m.value()

		if s.Timestamp < f.plot.VolumePlot[idx].Timestamp {
			f.retime(idx, s.Timestamp)
		}
		return
	}

	pos := insertionIndex(f.plot.VolumePlot, s.Timestamp)
	f.plot.VolumePlot = insertPoint(f.plot.VolumePlot, pos, domain.TimePoint{Timestamp: s.Timestamp, Value: s.Volume()})
	f.plot.LiquidityPlot = insertPoint(f.plot.LiquidityPlot, pos, domain.TimePoint{Timestamp: s.Timestamp, Value: s.TVL()})
	f.plot.FeesPlot = insertPoint(f.plot.FeesPlot, pos, domain.TimePoint{Timestamp: s.Timestamp, Value: s.Fees()})

	m := &runningMean{}
	m.add(s.TVL())
	f.tvl[anchor] = m
}

// retime moves bucket idx to an earlier contributing timestamp.
// The bucket keeps its position: no other bucket shares its calendar period.
func (f *poolPlotFold) retime(idx int, ts int64) {
	f.plot.VolumePlot[idx].Timestamp = ts
	f.plot.LiquidityPlot[idx].Timestamp = ts
	f.plot.FeesPlot[idx].Timestamp = ts
}
