package stats

import (
	"fmt"
	"time"
)

// Bucket sizes understood by Window.
const (
	BucketDay   = "day"
	BucketWeek  = "week"
	BucketMonth = "month"
)

// Window is an inclusive calendar range subdivided into buckets.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket string    `json:"bucket"`
}

// ParseBucket accepts day, week or month; empty means day.
func ParseBucket(raw string) (string, error) {
	switch raw {
	case "", BucketDay:
		return BucketDay, nil
	case BucketWeek, BucketMonth:
		return raw, nil
	}
	return "", fmt.Errorf("unknown bucket %q (want day, week or month)", raw)
}

// NewWindow snaps start to the beginning and end to the end of their buckets.
func NewWindow(start, end time.Time, bucket string) Window {
	if bucket == "" {
		bucket = BucketDay
	}
	return Window{
		Start:  SnapToStart(start, bucket),
		End:    SnapToEnd(end, bucket),
		Bucket: bucket,
	}
}

// SnapToStart normalizes a timestamp to the beginning of its bucket (0:00:00).
func SnapToStart(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case BucketWeek:
		// Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SnapToEnd normalizes a timestamp to the last nanosecond of its bucket.
func SnapToEnd(t time.Time, bucket string) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case BucketMonth:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
	case BucketWeek:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()+(7-weekday), 23, 59, 59, 999999999, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
	}
}

// IsPartial returns true if the bucket includes now, i.e. its data is still moving.
func (w Window) IsPartial(bucketStart time.Time, now time.Time) bool {
	bucketEnd := SnapToEnd(bucketStart, w.Bucket)
	return !now.Before(bucketStart) && !now.After(bucketEnd)
}

// Subdivide returns the start of every bucket within the window.
func (w Window) Subdivide() []time.Time {
	var buckets []time.Time
	for current := w.Start; current.Before(w.End); {
		buckets = append(buckets, current)
		switch w.Bucket {
		case BucketMonth:
			current = current.AddDate(0, 1, 0)
		case BucketWeek:
			current = current.AddDate(0, 0, 7)
		default:
			current = current.AddDate(0, 0, 1)
		}
	}
	return buckets
}

// GenerateLabel returns a human-readable label for a bucket (e.g. "2024-03-01" or "2024-W09").
func (w Window) GenerateLabel(t time.Time) string {
	switch w.Bucket {
	case BucketMonth:
		return t.Format("Jan 2006")
	case BucketWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
