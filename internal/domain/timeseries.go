package domain

// TimePoint is one bucket of a plot, keyed by the timestamp of the
// earliest snapshot that contributed to it.
type TimePoint struct {
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	Value     float64 `json:"value"`
}

// IntervalPlot holds the parallel plots for one resolution.
// The three slices share length and timestamps and are ordered ascending.
type IntervalPlot struct {
	VolumePlot    []TimePoint `json:"volumePlot"`
	LiquidityPlot []TimePoint `json:"liquidityPlot"`
	FeesPlot      []TimePoint `json:"feesPlot"`
}

// Clone returns a deep copy of p.
func (p *IntervalPlot) Clone() *IntervalPlot {
	if p == nil {
		return &IntervalPlot{}
	}
	return &IntervalPlot{
		VolumePlot:    clonePoints(p.VolumePlot),
		LiquidityPlot: clonePoints(p.LiquidityPlot),
		FeesPlot:      clonePoints(p.FeesPlot),
	}
}

// Aligned reports whether the three plots share length and timestamps.
func (p *IntervalPlot) Aligned() bool {
	if p == nil {
		return true
	}
	n := len(p.VolumePlot)
	if len(p.LiquidityPlot) != n || len(p.FeesPlot) != n {
		return false
	}
	for i := 0; i < n; i++ {
		ts := p.VolumePlot[i].Timestamp
		if p.LiquidityPlot[i].Timestamp != ts || p.FeesPlot[i].Timestamp != ts {
			return false
		}
	}
	return true
}

func clonePoints(in []TimePoint) []TimePoint {
	if in == nil {
		return nil
	}
	out := make([]TimePoint, len(in))
	copy(out, in)
	return out
}

// PoolIntervals maps each resolution to the pool's plots.
type PoolIntervals map[Resolution]*IntervalPlot

// Clone returns a deep copy of pi.
func (pi PoolIntervals) Clone() PoolIntervals {
	out := make(PoolIntervals, len(pi))
	for r, p := range pi {
		out[r] = p.Clone()
	}
	return out
}
