// Package sprint resolves free-form planned-week labels such as
// "Sprint3_Feb17-21" or "Jan28-Feb3" into concrete calendar ranges.
package sprint

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsableWeekLabel is returned when a label does not follow the
// "[SprintN_]MonDD-[Mon]DD" grammar. Callers keep such labels verbatim.
var ErrUnparsableWeekLabel = errors.New("unparsable week label")

// Range is a planned week resolved from its label. End is inclusive.
type Range struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether day falls in the half-open [Start, Start+7d) window.
func (r Range) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(r.Start) && d.Before(r.Start.AddDate(0, 0, 7))
}

// DisplayName renders the range the way week axes show it, e.g. "Feb 17 - Feb 21".
func (r Range) DisplayName() string {
	return r.Start.Format("Jan 02") + " - " + r.End.Format("Jan 02")
}

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

var labelPattern = regexp.MustCompile(`^(?i:sprint\s*\d+[_\s]+)?([A-Za-z]{3})\s*(\d{1,2})\s*-\s*(?:([A-Za-z]{3})\s*)?(\d{1,2})$`)

// ParseWeekLabel resolves label against the current local date.
func ParseWeekLabel(label string) (Range, error) {
	return ParseWeekLabelAt(label, time.Now())
}

// ParseWeekLabelAt resolves label assuming "now" for the missing year.
//
// Labels carry no year: the current year is assumed unless the start month is
// more than six months ahead of now's month, in which case the previous year
// is used. A range whose end month precedes its start month rolls the end
// into the following year (Dec29-Jan2).
func ParseWeekLabelAt(label string, now time.Time) (Range, error) {
	m := labelPattern.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q", ErrUnparsableWeekLabel, label)
	}

	startMonth, ok := months[strings.ToLower(m[1])]
	if !ok {
		return Range{}, fmt.Errorf("%w: unknown month %q in %q", ErrUnparsableWeekLabel, m[1], label)
	}
	endMonth := startMonth
	if m[3] != "" {
		endMonth, ok = months[strings.ToLower(m[3])]
		if !ok {
			return Range{}, fmt.Errorf("%w: unknown month %q in %q", ErrUnparsableWeekLabel, m[3], label)
		}
	}
	startDay, _ := strconv.Atoi(m[2])
	endDay, _ := strconv.Atoi(m[4])

	year := now.Year()
	if int(startMonth)-int(now.Month()) > 6 {
		year--
	}
	endYear := year
	if endMonth < startMonth {
		endYear++
	}

	loc := now.Location()
	start, ok := calendarDate(year, startMonth, startDay, loc)
	if !ok {
		return Range{}, fmt.Errorf("%w: invalid start day in %q", ErrUnparsableWeekLabel, label)
	}
	end, ok := calendarDate(endYear, endMonth, endDay, loc)
	if !ok {
		return Range{}, fmt.Errorf("%w: invalid end day in %q", ErrUnparsableWeekLabel, label)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: end before start in %q", ErrUnparsableWeekLabel, label)
	}

	return Range{Label: label, Start: start, End: end}, nil
}

// Resolve accepts either an ISO date (an already-resolved week start, shown
// as a Monday-to-Friday range) or a sprint label.
func Resolve(label string, now time.Time) (Range, error) {
	if d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(label), now.Location()); err == nil {
		return Range{Label: label, Start: d, End: d.AddDate(0, 0, 4)}, nil
	}
	return ParseWeekLabelAt(label, now)
}

// Day truncates t to local midnight of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func calendarDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
