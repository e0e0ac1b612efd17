package aggregation

import (
	"slices"
	"sort"

	"amm-stats/internal/domain"
)

// runningMean accumulates observations for an averaged bucket.
type runningMean struct {
	sum   float64
	count int
}

func (m *runningMean) add(v float64) {
	m.sum += v
	m.count++
}

func (m *runningMean) value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// bucketIndex returns the position of the bucket with anchor, or -1.
// Plots are ascending and input is mostly ascending, so scan from the end.
func bucketIndex(points []domain.TimePoint, anchor int64, anchorOf func(int64) int64) int {
	for i := len(points) - 1; i >= 0; i-- {
		if anchorOf(points[i].Timestamp) == anchor {
			return i
		}
	}
	return -1
}

// insertionIndex returns where a bucket at ts goes to keep points ascending.
func insertionIndex(points []domain.TimePoint, ts int64) int {
	return sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp > ts
	})
}

func insertPoint(points []domain.TimePoint, idx int, p domain.TimePoint) []domain.TimePoint {
	return slices.Insert(points, idx, p)
}

// lastValues returns the final two bucket values of points.
func lastValues(points []domain.TimePoint) (current, previous float64) {
	n := len(points)
	if n > 0 {
		current = points[n-1].Value
	}
	if n > 1 {
		previous = points[n-2].Value
	}
	return current, previous
}

// trailingSlices returns the most recent window buckets and the window
// buckets preceding them.
func trailingSlices(points []domain.TimePoint, window int) (current, previous []domain.TimePoint) {
	n := len(points)
	curStart := max(n-window, 0)
	prevStart := max(curStart-window, 0)
	return points[curStart:n], points[prevStart:curStart]
}

func sumValues(points []domain.TimePoint) float64 {
	var s float64
	for _, p := range points {
		s += p.Value
	}
	return s
}

func meanValues(points []domain.TimePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return sumValues(points) / float64(len(points))
}
