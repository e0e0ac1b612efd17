package aggregation

import (
	"math"

	"amm-stats/internal/domain"
)

// APYCeiling replaces APY values that overflow to infinity.
const APYCeiling = 1001

// PercentChange returns the percent change from previous to current.
// A zero previous value yields zero.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// APY annualizes daily fee yield: volume times fee over tvl, compounded
// 365 times. feePercent is the pool fee tier in percent.
func APY(volume, tvl, feePercent float64) float64 {
	apy := (math.Pow(1+(volume*feePercent/100)/tvl, 365) - 1) * 100
	switch {
	case math.IsNaN(apy):
		return 0
	case math.IsInf(apy, 0):
		return APYCeiling
	}
	return apy
}

// usesLatestBuckets reports whether r compares its own last two buckets
// rather than trailing slices of the daily plot.
func usesLatestBuckets(r domain.Resolution) bool {
	return r == domain.ResolutionDaily || r == domain.ResolutionAll
}

// volumeChange sums trailing windows. own is the resolution's plot and daily
// the daily plot of the same series.
func volumeChange(r domain.Resolution, own, daily []domain.TimePoint, window int) domain.ValueChange {
	var cur, prev float64
	if usesLatestBuckets(r) {
		cur, prev = lastValues(own)
	} else {
		c, p := trailingSlices(daily, window)
		cur, prev = sumValues(c), sumValues(p)
	}
	return domain.ValueChange{Value: cur, Change: PercentChange(cur, prev)}
}

// tvlChange averages trailing windows.
func tvlChange(r domain.Resolution, own, daily []domain.TimePoint, window int) domain.ValueChange {
	var cur, prev float64
	if usesLatestBuckets(r) {
		cur, prev = lastValues(own)
	} else {
		c, p := trailingSlices(daily, window)
		cur, prev = meanValues(c), meanValues(p)
	}
	return domain.ValueChange{Value: cur, Change: PercentChange(cur, prev)}
}
