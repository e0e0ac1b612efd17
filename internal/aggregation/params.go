// Package aggregation folds pool snapshots into calendar-bucketed plots and
// network-wide summary statistics.
package aggregation

import (
	"math"
	"time"

	"amm-stats/internal/domain"
	"amm-stats/internal/interval"
)

// Params configures an aggregation run for one network.
type Params struct {
	// Resolutions to produce. Empty means all.
	Resolutions []domain.Resolution
	// HasLocked enables lockedX/lockedY in pool rows.
	HasLocked bool
	// OmitFeeTiers lists fee tiers (percent) excluded from every output.
	OmitFeeTiers []float64
	// TrailingWindows overrides the per-resolution snapshot windows.
	TrailingWindows map[domain.Resolution]int
	// Location is the time zone for calendar math. Nil means UTC.
	Location *time.Location
}

// DefaultParams returns params for every resolution with default windows.
func DefaultParams() Params {
	return Params{
		Resolutions:     domain.AllResolutions,
		TrailingWindows: interval.DefaultWindows(),
	}
}

func (p Params) resolutions() []domain.Resolution {
	if len(p.Resolutions) == 0 {
		return domain.AllResolutions
	}
	return p.Resolutions
}

// foldResolutions is resolutions plus daily, which change calculation for
// coarser resolutions reads from.
func (p Params) foldResolutions() []domain.Resolution {
	rs := p.resolutions()
	for _, r := range rs {
		if r == domain.ResolutionDaily {
			return rs
		}
	}
	return append([]domain.Resolution{domain.ResolutionDaily}, rs...)
}

// Window returns the trailing window for r.
func (p Params) Window(r domain.Resolution) int {
	if w, ok := p.TrailingWindows[r]; ok && w > 0 {
		return w
	}
	return interval.DefaultWindows()[r]
}

const feeTierEpsilon = 1e-9

// IsOmitted reports whether a pool with fee tier fee is excluded.
func (p Params) IsOmitted(fee float64) bool {
	for _, omit := range p.OmitFeeTiers {
		if math.Abs(omit-fee) < feeTierEpsilon {
			return true
		}
	}
	return false
}
