// Package interval maps snapshot timestamps onto calendar buckets.
package interval

import (
	"time"

	"amm-stats/internal/domain"
)

// Default trailing windows in snapshots, assuming one snapshot per day.
const (
	WindowDaily     = 1
	WindowWeekly    = 7
	WindowMonthly   = 30
	WindowYearly    = 365
	WindowUnbounded = 36500
)

// DefaultWindows returns the trailing window per resolution.
func DefaultWindows() map[domain.Resolution]int {
	return map[domain.Resolution]int{
		domain.ResolutionDaily:   WindowDaily,
		domain.ResolutionWeekly:  WindowWeekly,
		domain.ResolutionMonthly: WindowMonthly,
		domain.ResolutionYearly:  WindowYearly,
		domain.ResolutionAll:     WindowUnbounded,
	}
}

// Bucketer computes bucket anchors in a fixed location.
// All calendar math happens in that location so a run is reproducible
// regardless of the host time zone.
type Bucketer struct {
	loc *time.Location
}

// NewBucketer creates a bucketer. A nil location means UTC.
func NewBucketer(loc *time.Location) *Bucketer {
	if loc == nil {
		loc = time.UTC
	}
	return &Bucketer{loc: loc}
}

// Location returns the bucketer's time zone.
func (b *Bucketer) Location() *time.Location {
	return b.loc
}

func (b *Bucketer) at(ts int64) time.Time {
	return time.UnixMilli(ts).In(b.loc)
}

// Anchor returns the bucket key for ts at resolution r.
// Two timestamps share an anchor exactly when ShouldCompound holds for them.
//
//	daily:   y*10000 + m*100 + d
//	weekly:  isoYear*100 + isoWeek
//	monthly: y*100 + m
//	yearly:  y
//	all:     1
func (b *Bucketer) Anchor(r domain.Resolution, ts int64) int64 {
	t := b.at(ts)
	switch r {
	case domain.ResolutionDaily:
		return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
	case domain.ResolutionWeekly:
		y, w := t.ISOWeek()
		return int64(y)*100 + int64(w)
	case domain.ResolutionMonthly:
		return int64(t.Year())*100 + int64(t.Month())
	case domain.ResolutionYearly:
		return int64(t.Year())
	case domain.ResolutionAll:
		return 1
	}
	return ts
}

// ShouldCompound reports whether a snapshot at ts folds into the bucket
// whose timestamp is existing.
func (b *Bucketer) ShouldCompound(r domain.Resolution, existing, ts int64) bool {
	e, t := b.at(existing), b.at(ts)
	switch r {
	case domain.ResolutionDaily:
		return sameDay(e, t)
	case domain.ResolutionWeekly:
		return sameDay(weekStart(e), weekStart(t))
	case domain.ResolutionMonthly:
		return e.Year() == t.Year() && e.Month() == t.Month()
	case domain.ResolutionYearly:
		return e.Year() == t.Year()
	case domain.ResolutionAll:
		return true
	}
	return false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// weekStart returns the Monday starting t's ISO week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}
