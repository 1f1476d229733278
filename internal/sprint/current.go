package sprint

import "time"

// CurrentWeek is the outcome of a current-week lookup.
type CurrentWeek struct {
	Range Range `json:"range"`
	// Exact is false when no window contains today and the most recently
	// closed window was chosen instead.
	Exact bool `json:"exact"`
}

// FindCurrentWeek returns the range whose [Start, Start+7d) window contains
// today. When several do, the latest start wins. When none does, it falls
// back to the most recently closed window before today. The boolean is false
// only when every window opens after today (or ranges is empty).
func FindCurrentWeek(ranges []Range, today time.Time) (CurrentWeek, bool) {
	day := Day(today)

	var exact, closed *Range
	for i := range ranges {
		r := &ranges[i]
		if r.Contains(day) {
			if exact == nil || later(r, exact) {
				exact = r
			}
			continue
		}
		if !r.Start.AddDate(0, 0, 7).After(day) {
			if closed == nil || later(r, closed) {
				closed = r
			}
		}
	}

	switch {
	case exact != nil:
		return CurrentWeek{Range: *exact, Exact: true}, true
	case closed != nil:
		return CurrentWeek{Range: *closed, Exact: false}, true
	}
	return CurrentWeek{}, false
}

func later(a, b *Range) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.After(b.Start)
	}
	return a.Label < b.Label
}
