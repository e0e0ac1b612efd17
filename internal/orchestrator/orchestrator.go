// Package orchestrator runs one aggregation pass for a network.
// It coordinates: pool listing → per-pool fold → global fold → fees → prices → persistence
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"amm-stats/internal/aggregation"
	"amm-stats/internal/domain"
	"amm-stats/internal/notify"
	"amm-stats/internal/observability"
	"amm-stats/internal/pools"
	"amm-stats/internal/prices"
	"amm-stats/internal/storage"
)

// Skip reason for pools in an omitted fee tier.
const SkipOmittedTier = "omitted_fee_tier"

// Orchestrator coordinates an aggregation run for one network.
type Orchestrator struct {
	network string
	params  aggregation.Params

	// Inputs
	pools     pools.Source
	snapshots storage.SnapshotStore
	prices    prices.Source

	// Outputs
	intervals storage.IntervalStore
	stats     storage.StatsStore
	publisher notify.Publisher

	poolAgg   *aggregation.PoolAggregator
	globalAgg *aggregation.GlobalAggregator

	logger *zap.Logger
	now    func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Network string
	Params  aggregation.Params

	// Required
	Pools     pools.Source
	Snapshots storage.SnapshotStore
	Intervals storage.IntervalStore
	Stats     storage.StatsStore

	// Optional
	Prices    prices.Source    // nil leaves prices at zero
	Publisher notify.Publisher // nil disables notifications
	Logger    *zap.Logger
	Now       func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		network:   opts.Network,
		params:    opts.Params,
		pools:     opts.Pools,
		snapshots: opts.Snapshots,
		prices:    opts.Prices,
		intervals: opts.Intervals,
		stats:     opts.Stats,
		publisher: opts.Publisher,
		poolAgg:   aggregation.NewPoolAggregator(opts.Params),
		globalAgg: aggregation.NewGlobalAggregator(opts.Params),
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if o.publisher == nil {
		o.publisher = notify.NopPublisher{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.logger = o.logger.With(zap.String("network", opts.Network))
	return o
}

// RunResult contains results from one aggregation run.
type RunResult struct {
	Network         string
	PoolsAggregated int
	PoolsOmitted    int
	PoolsNoHistory  int
	Disappeared     []string
	SnapshotsFolded int
	PricedTokens    int
	Stats           *domain.NetworkStats
}

// Run executes one aggregation pass.
// Phases:
//  1. List live pools and report pools that disappeared
//  2. Fold and persist each pool's intervals, one pool at a time
//  3. Fold the persisted intervals into network totals
//  4. Sum the fee summary from the persisted intervals
//  5. Annotate token prices
//  6. Persist the totals and announce them
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := o.now()
	result, err := o.run(ctx, start)

	finished := o.now()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordRun(o.network, status, finished.Sub(start).Seconds(), finished.Unix())
	if err != nil {
		o.logger.Error("aggregation failed", zap.Duration("duration", finished.Sub(start)), zap.Error(err))
		return nil, err
	}

	observability.RecordPools(o.network, result.PoolsAggregated, len(result.Disappeared))
	o.logger.Info("aggregation completed",
		zap.Int("pools", result.PoolsAggregated),
		zap.Int("omitted", result.PoolsOmitted),
		zap.Int("disappeared", len(result.Disappeared)),
		zap.Int("snapshots", result.SnapshotsFolded),
		zap.Duration("duration", finished.Sub(start)),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, now time.Time) (*RunResult, error) {
	result := &RunResult{Network: o.network}

	// Phase 1: live pools
	o.logger.Info("aggregation started")
	live, err := o.pools.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (list pools) failed: %w", err)
	}
	if result.Disappeared, err = o.disappeared(ctx, live); err != nil {
		return nil, fmt.Errorf("phase 1 (list history) failed: %w", err)
	}

	included := make([]domain.PoolMeta, 0, len(live))
	for _, meta := range live {
		if o.params.IsOmitted(meta.Fee) {
			result.PoolsOmitted++
			observability.RecordPoolSkipped(o.network, SkipOmittedTier)
			o.logger.Warn("skipping pool",
				zap.String("pool", meta.PoolKey),
				zap.String("reason", SkipOmittedTier),
				zap.Float64("fee", meta.Fee),
			)
			continue
		}
		included = append(included, meta)
	}

	// Phase 2: per-pool fold
	for i, meta := range included {
		snaps, series, err := o.loadSnapshots(ctx, meta.PoolKey, now)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (fold pools) failed: %w", err)
		}
		if series == nil {
			result.PoolsNoHistory++
		} else {
			included[i] = fillMeta(meta, series)
		}

		intervals := o.poolAgg.Fold(snaps, nil)
		if err := o.intervals.SavePoolIntervals(ctx, o.network, meta.PoolKey, intervals); err != nil {
			observability.RecordStoreError("intervals", "save")
			return nil, fmt.Errorf("phase 2 (fold pools) failed: save %s: %w", meta.PoolKey, err)
		}
		result.SnapshotsFolded += len(snaps)
		observability.RecordSnapshotsFolded(o.network, len(snaps))
		o.logger.Debug("pool folded", zap.String("pool", meta.PoolKey), zap.Int("snapshots", len(snaps)))
	}
	result.PoolsAggregated = len(included)

	// Phase 3: global fold over persisted intervals
	fold := o.globalAgg.NewFold()
	for _, meta := range included {
		intervals, err := o.readIntervals(ctx, meta.PoolKey)
		if err != nil {
			return nil, fmt.Errorf("phase 3 (global fold) failed: %w", err)
		}
		snaps, _, err := o.loadSnapshots(ctx, meta.PoolKey, now)
		if err != nil {
			return nil, fmt.Errorf("phase 3 (global fold) failed: %w", err)
		}
		fold.AddPool(meta, snaps, intervals)
	}

	// Phase 4: fee summary, re-reading each pool's intervals
	fees := o.globalAgg.NewFeesFold()
	for _, meta := range included {
		intervals, err := o.readIntervals(ctx, meta.PoolKey)
		if err != nil {
			return nil, fmt.Errorf("phase 4 (fees) failed: %w", err)
		}
		fees.AddPool(intervals)
	}
	totals := fold.Finalize(fees.Result())

	// Phase 5: prices
	result.PricedTokens = o.annotatePrices(ctx, totals)

	// Phase 6: persist and announce
	stats := &domain.NetworkStats{
		Network:     o.network,
		GeneratedAt: now.UnixMilli(),
		Intervals:   totals,
	}
	if err := o.stats.SaveStats(ctx, stats); err != nil {
		observability.RecordStoreError("stats", "save")
		return nil, fmt.Errorf("phase 6 (save stats) failed: %w", err)
	}
	result.Stats = stats

	event := notify.Event{Network: o.network, GeneratedAt: now, Pools: len(included)}
	if err := o.publisher.Publish(ctx, event); err != nil {
		observability.RecordPublishError(o.network)
		o.logger.Warn("publish aggregation event", zap.Error(err))
	}
	return result, nil
}

// disappeared returns pools with recorded history that are no longer live.
func (o *Orchestrator) disappeared(ctx context.Context, live []domain.PoolMeta) ([]string, error) {
	history, err := o.snapshots.ListPools(ctx, o.network)
	if err != nil {
		return nil, err
	}
	liveKeys := make(map[string]struct{}, len(live))
	for _, meta := range live {
		liveKeys[meta.PoolKey] = struct{}{}
	}

	var gone []string
	for _, key := range history {
		if _, ok := liveKeys[key]; !ok {
			gone = append(gone, key)
		}
	}
	sort.Strings(gone)
	if len(gone) > 0 {
		o.logger.Warn("pools with history are no longer live",
			zap.Int("count", len(gone)),
			zap.Strings("pools", gone),
		)
	}
	return gone, nil
}

// loadSnapshots returns a pool's snapshots, or a single zero snapshot at now
// when the pool has no history. series is nil in the latter case.
func (o *Orchestrator) loadSnapshots(ctx context.Context, poolKey string, now time.Time) ([]domain.Snapshot, *domain.PoolSnapshotSeries, error) {
	series, err := o.snapshots.GetSeries(ctx, o.network, poolKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.Snapshot{domain.ZeroSnapshot(now.UnixMilli())}, nil, nil
	}
	if err != nil {
		observability.RecordStoreError("snapshots", "get")
		return nil, nil, fmt.Errorf("get series %s: %w", poolKey, err)
	}
	if len(series.Snapshots) == 0 {
		return []domain.Snapshot{domain.ZeroSnapshot(now.UnixMilli())}, nil, nil
	}
	return series.Sorted(), series, nil
}

func (o *Orchestrator) readIntervals(ctx context.Context, poolKey string) (domain.PoolIntervals, error) {
	intervals, err := o.intervals.GetPoolIntervals(ctx, o.network, poolKey)
	if err != nil {
		observability.RecordStoreError("intervals", "get")
		return nil, fmt.Errorf("get intervals %s: %w", poolKey, err)
	}
	return intervals, nil
}

// annotatePrices sets token prices and returns how many tokens were priced.
// A failing price source leaves prices at zero.
func (o *Orchestrator) annotatePrices(ctx context.Context, totals domain.TotalStats) int {
	if o.prices == nil {
		return 0
	}
	addresses := totals.TokenAddresses()
	quotes, err := o.prices.GetPrices(ctx, addresses)
	if err != nil {
		observability.RecordPriceFetchError(o.network)
		o.logger.Warn("price fetch failed", zap.Int("tokens", len(addresses)), zap.Error(err))
		return 0
	}
	aggregation.AnnotatePrices(totals, quotes)
	return len(quotes)
}

// fillMeta completes token addresses missing from the pool listing.
func fillMeta(meta domain.PoolMeta, series *domain.PoolSnapshotSeries) domain.PoolMeta {
	if meta.TokenX == "" {
		meta.TokenX = series.TokenX.Address
	}
	if meta.TokenY == "" {
		meta.TokenY = series.TokenY.Address
	}
	return meta
}
