package domain

import "fmt"

// Resolution is a calendar bucket granularity.
type Resolution string

const (
	ResolutionDaily   Resolution = "daily"
	ResolutionWeekly  Resolution = "weekly"
	ResolutionMonthly Resolution = "monthly"
	ResolutionYearly  Resolution = "yearly"
	ResolutionAll     Resolution = "all"
)

// AllResolutions lists every supported resolution, finest first.
var AllResolutions = []Resolution{
	ResolutionDaily,
	ResolutionWeekly,
	ResolutionMonthly,
	ResolutionYearly,
	ResolutionAll,
}

// IsValid reports whether r is a supported resolution.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionDaily, ResolutionWeekly, ResolutionMonthly, ResolutionYearly, ResolutionAll:
		return true
	}
	return false
}

// ParseResolution validates s as a resolution name.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, s)
	}
	return r, nil
}
