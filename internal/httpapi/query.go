package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jama-reports/internal/report"
	"jama-reports/internal/stats"
	"jama-reports/internal/testrun"
)

// parseQuery reads plan, cycle, group, priority, bucket, collapse_blocked,
// collapse_inprogress, start and end.
func parseQuery(v url.Values, defaults stats.Collapse) (report.Query, error) {
	q := report.Query{
		Plan:     v.Get("plan"),
		Cycle:    v.Get("cycle"),
		Group:    v.Get("group"),
		Priority: v.Get("priority"),
		Bucket:   v.Get("bucket"),
	}

	if _, err := stats.ParseBucket(q.Bucket); err != nil {
		return q, badRequest{err}
	}

	collapse := defaults
	var set bool
	for param, dst := range map[string]*bool{
		"collapse_blocked":    &collapse.BlockedIntoNotRun,
		"collapse_inprogress": &collapse.InProgressIntoNotRun,
	} {
		raw := v.Get(param)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, badRequest{fmt.Errorf("invalid %s %q", param, raw)}
		}
		*dst = b
		set = true
	}
	if set {
		q.Collapse = &collapse
	}

	var err error
	if q.Start, err = parseDay(v, "start"); err != nil {
		return q, err
	}
	if q.End, err = parseDay(v, "end"); err != nil {
		return q, err
	}
	return q, nil
}

func parseDay(v url.Values, param string) (time.Time, error) {
	raw := strings.TrimSpace(v.Get(param))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, badRequest{fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", param, raw)}
	}
	return t, nil
}

// parseStatuses accepts repeated or comma-separated status parameters.
func parseStatuses(v url.Values) ([]testrun.Status, error) {
	var out []testrun.Status
	for _, raw := range v["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := testrun.ParseStatus(part)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}
