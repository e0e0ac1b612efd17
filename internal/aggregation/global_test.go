package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-stats/internal/domain"
)

func foldAll(t *testing.T, params Params, pools map[domain.PoolMeta][]domain.Snapshot, order []domain.PoolMeta) domain.TotalStats {
	t.Helper()
	g := NewGlobalAggregator(params)
	fold := g.NewFold()
	fees := g.NewFeesFold()
	poolAgg := NewPoolAggregator(params)
	for _, meta := range order {
		intervals := poolAgg.Fold(pools[meta], nil)
		fold.AddPool(meta, pools[meta], intervals)
		fees.AddPool(intervals)
	}
	return fold.Finalize(fees.Result())
}

func TestGlobalFold_TrailingWindowVolume(t *testing.T) {
	p1 := domain.PoolMeta{PoolKey: "P1", TokenX: "A", TokenY: "B", Fee: 0.09}
	p2 := domain.PoolMeta{PoolKey: "P2", TokenX: "B", TokenY: "C", Fee: 1}
	pools := map[domain.PoolMeta][]domain.Snapshot{
		p1: dailySeries(10, 100, 1000, 0.09),
		p2: dailySeries(10, 10, 500, 0.1),
	}

	stats := foldAll(t, DefaultParams(), pools, []domain.PoolMeta{p1, p2})

	daily := stats[domain.ResolutionDaily]
	require.Len(t, daily.PoolsData, 2)
	assert.Equal(t, "P1", daily.PoolsData[0].PoolAddress)
	assert.InDelta(t, 100, daily.PoolsData[0].Volume, 1e-9)
	assert.InDelta(t, 1000, daily.PoolsData[0].TVL, 1e-9)
	assert.InDelta(t, APY(100, 1000, 0.09), daily.PoolsData[0].APY, 1e-9)

	all := stats[domain.ResolutionAll]
	require.Len(t, all.PoolsData, 2)
	assert.InDelta(t, 1000, all.PoolsData[0].Volume, 1e-9)
	assert.InDelta(t, 1000, all.PoolsData[0].TVL, 1e-9)

	weekly := stats[domain.ResolutionWeekly]
	assert.InDelta(t, 700, weekly.PoolsData[0].Volume, 1e-9)
	// Monthly window exceeds the history, so every snapshot counts.
	assert.InDelta(t, 1000, stats[domain.ResolutionMonthly].PoolsData[0].Volume, 1e-9)
}

func TestGlobalFold_PoolRowSumsWindow(t *testing.T) {
	meta := domain.PoolMeta{PoolKey: "P1", TokenX: "A", TokenY: "B", Fee: 0.3}
	snaps := make([]domain.Snapshot, 10)
	for i := range snaps {
		snaps[i] = snap(dayMs(i, 0), float64(10*(i+1)), float64(100*(i+1)), 0.1)
	}

	stats := foldAll(t, DefaultParams(), map[domain.PoolMeta][]domain.Snapshot{meta: snaps}, []domain.PoolMeta{meta})

	// Weekly window covers the last 7 snapshots: volumes 40..100, tvl 400..1000.
	weekly := stats[domain.ResolutionWeekly].PoolsData
	require.Len(t, weekly, 1)
	assert.InDelta(t, 490, weekly[0].Volume, 1e-9)
	assert.InDelta(t, 700, weekly[0].TVL, 1e-9)
	assert.InDelta(t, APY(490, 700, 0.3), weekly[0].APY, 1e-9)
	assert.InDelta(t, 500, weekly[0].LiquidityX, 1e-9)

	daily := stats[domain.ResolutionDaily].PoolsData
	require.Len(t, daily, 1)
	assert.InDelta(t, 100, daily[0].Volume, 1e-9)
	assert.InDelta(t, 1000, daily[0].TVL, 1e-9)
}

func TestGlobalFold_Plots(t *testing.T) {
	p1 := domain.PoolMeta{PoolKey: "P1", TokenX: "A", TokenY: "B", Fee: 0.3}
	p2 := domain.PoolMeta{PoolKey: "P2", TokenX: "A", TokenY: "C", Fee: 0.3}
	pools := map[domain.PoolMeta][]domain.Snapshot{
		p1: {
			snap(dayMs(0, 0), 10, 100, 1),
			snap(dayMs(0, 4), 10, 300, 1),
			snap(dayMs(1, 0), 10, 100, 1),
		},
		p2: {
			snap(dayMs(1, 2), 5, 50, 0.5),
			snap(dayMs(2, 0), 5, 50, 0.5),
		},
	}

	stats := foldAll(t, DefaultParams(), pools, []domain.PoolMeta{p1, p2})
	daily := stats[domain.ResolutionDaily]

	require.Len(t, daily.VolumePlot, 3)
	assert.Equal(t, []float64{20, 15, 5}, values(daily.VolumePlot))
	// Day 0: P1 average of 100 and 300. Day 1: P1 100 plus P2 50.
	assert.Equal(t, []float64{200, 150, 50}, values(daily.LiquidityPlot))
	assert.Equal(t, dayMs(0, 0), daily.VolumePlot[0].Timestamp)
	assert.Equal(t, dayMs(1, 0), daily.VolumePlot[1].Timestamp)

	assert.Equal(t, float64(5), daily.Volume.Value)
	assert.InDelta(t, (5.0-15.0)/15.0*100, daily.Volume.Change, 1e-9)
	assert.Equal(t, float64(50), daily.TVL.Value)

	all := stats[domain.ResolutionAll]
	require.Len(t, all.VolumePlot, 1)
	assert.Equal(t, float64(40), all.VolumePlot[0].Value)
	assert.InDelta(t, 500.0/3+50, all.LiquidityPlot[0].Value, 1e-9)
	assert.Equal(t, float64(0), all.Volume.Change)
}

func TestGlobalFold_TokenTVL(t *testing.T) {
	p1 := domain.PoolMeta{PoolKey: "P1", TokenX: "A", TokenY: "B", Fee: 0.3}
	p2 := domain.PoolMeta{PoolKey: "P2", TokenX: "A", TokenY: "C", Fee: 0.3}
	pools := map[domain.PoolMeta][]domain.Snapshot{
		p1: dailySeries(2, 10, 200, 0),
		p2: dailySeries(2, 20, 100, 0),
	}

	stats := foldAll(t, DefaultParams(), pools, []domain.PoolMeta{p1, p2})
	all := stats[domain.ResolutionAll]
	require.Len(t, all.TokensData, 3)

	tokenA := all.TokensData[0]
	assert.Equal(t, "A", tokenA.Address)
	// X side of each pool: 100 and 50 liquidity at two timestamps.
	assert.InDelta(t, 150, tokenA.TVL, 1e-9)
	assert.InDelta(t, 2*5+2*10, tokenA.Volume, 1e-9)

	assert.Equal(t, "B", all.TokensData[1].Address)
	assert.InDelta(t, 100, all.TokensData[1].TVL, 1e-9)
}

func TestGlobalFold_PoolRowLatestSides(t *testing.T) {
	params := DefaultParams()
	params.HasLocked = true
	meta := domain.PoolMeta{PoolKey: "P", TokenX: "A", TokenY: "B", Fee: 0.3}

	s1 := snap(dayMs(0, 0), 10, 100, 0)
	s2 := snap(dayMs(1, 0), 10, 300, 0)
	s2.LockedX = &domain.TokenValue{USDValue24: 7}
	s2.LockedY = &domain.TokenValue{USDValue24: 8}

	stats := foldAll(t, params, map[domain.PoolMeta][]domain.Snapshot{meta: {s1, s2}}, []domain.PoolMeta{meta})
	row := stats[domain.ResolutionAll].PoolsData[0]

	assert.Equal(t, float64(200), row.TVL)
	assert.Equal(t, float64(150), row.LiquidityX)
	assert.Equal(t, float64(150), row.LiquidityY)
	assert.Equal(t, float64(7), row.LockedX)
	assert.Equal(t, float64(8), row.LockedY)
}

func TestGlobalFold_LockedIgnoredWhenDisabled(t *testing.T) {
	meta := domain.PoolMeta{PoolKey: "P", TokenX: "A", TokenY: "B"}
	s := snap(dayMs(0, 0), 10, 100, 0)
	s.LockedX = &domain.TokenValue{USDValue24: 7}

	stats := foldAll(t, DefaultParams(), map[domain.PoolMeta][]domain.Snapshot{meta: {s}}, []domain.PoolMeta{meta})
	assert.Zero(t, stats[domain.ResolutionDaily].PoolsData[0].LockedX)
}

func TestGlobalFold_MissingIntervalsRecomputed(t *testing.T) {
	meta := domain.PoolMeta{PoolKey: "P", TokenX: "A", TokenY: "B"}
	snaps := []domain.Snapshot{snap(dayMs(0, 0), 1, 10, 0), snap(dayMs(0, 1), 1, 30, 0)}

	g := NewGlobalAggregator(DefaultParams())
	fold := g.NewFold()
	fold.AddPool(meta, snaps, nil)
	stats := fold.Finalize(nil)

	assert.Equal(t, []float64{20}, values(stats[domain.ResolutionDaily].LiquidityPlot))
}

func TestGlobalFold_EmptyProducesEmptyRows(t *testing.T) {
	g := NewGlobalAggregator(DefaultParams())
	stats := g.NewFold().Finalize(g.NewFeesFold().Result())

	for _, r := range domain.AllResolutions {
		st := stats[r]
		require.NotNil(t, st, r)
		assert.NotNil(t, st.PoolsData)
		assert.NotNil(t, st.TokensData)
		assert.NotNil(t, st.VolumePlot)
		assert.Equal(t, domain.ValueChange{}, st.Volume)
	}
}

func TestFeesFold(t *testing.T) {
	params := DefaultParams()
	params.TrailingWindows = map[domain.Resolution]int{domain.ResolutionWeekly: 2}
	agg := NewPoolAggregator(params)

	g := NewGlobalAggregator(params)
	fees := g.NewFeesFold()
	fees.AddPool(agg.Fold([]domain.Snapshot{
		snap(dayMs(0, 0), 0, 0, 1),
		snap(dayMs(1, 0), 0, 0, 2),
		snap(dayMs(2, 0), 0, 0, 3),
		snap(dayMs(3, 0), 0, 0, 4),
	}, nil))
	fees.AddPool(agg.Fold([]domain.Snapshot{
		snap(dayMs(3, 0), 0, 0, 10),
	}, nil))

	res := fees.Result()
	assert.InDelta(t, 14, res[domain.ResolutionDaily].Value, 1e-9)
	assert.InDelta(t, (14.0-3.0)/3.0*100, res[domain.ResolutionDaily].Change, 1e-9)

	// Weekly window of 2 days: (3+4) + 10 against (1+2).
	assert.InDelta(t, 17, res[domain.ResolutionWeekly].Value, 1e-9)
	assert.InDelta(t, (17.0-3.0)/3.0*100, res[domain.ResolutionWeekly].Change, 1e-9)

	assert.InDelta(t, 20, res[domain.ResolutionAll].Value, 1e-9)
	assert.Zero(t, res[domain.ResolutionAll].Change)
}

func TestAnnotatePrices(t *testing.T) {
	stats := domain.TotalStats{
		domain.ResolutionDaily: {TokensData: []domain.TokenSummary{{Address: "A"}, {Address: "B", Price: 3}}},
		domain.ResolutionAll:   {TokensData: []domain.TokenSummary{{Address: "A"}}},
	}

	AnnotatePrices(stats, map[string]float64{"A": 1.5})

	assert.Equal(t, 1.5, stats[domain.ResolutionDaily].TokensData[0].Price)
	assert.Equal(t, float64(3), stats[domain.ResolutionDaily].TokensData[1].Price)
	assert.Equal(t, 1.5, stats[domain.ResolutionAll].TokensData[0].Price)
}

func TestParams_IsOmitted(t *testing.T) {
	p := Params{OmitFeeTiers: []float64{0.01, 1}}
	assert.True(t, p.IsOmitted(0.01))
	assert.True(t, p.IsOmitted(1))
	assert.False(t, p.IsOmitted(0.3))
}
