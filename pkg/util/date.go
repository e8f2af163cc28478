package util

import (
	"strconv"
	"time"
)

// ParseTime tries YYYY-MM-DD, RFC3339, RFC3339Nano and unix seconds.
// Returns (t, true) if any worked. Dates are midnight UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignDays widens [from, to] to whole UTC days: from becomes midnight of its
// day and to the last nanosecond of its day.
func AlignDays(from, to time.Time) (time.Time, time.Time) {
	from = startOfDay(from)
	to = startOfDay(to).Add(24*time.Hour - time.Nanosecond)
	return from, to
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
