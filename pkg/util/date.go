package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, a plain date, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
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

// AlignFromTo rounds the time range down to period boundaries for the
// granularity name. Unknown names fall back to hourly.
func AlignFromTo(from, to time.Time, granularity string) (time.Time, time.Time) {
	return AlignDown(from, granularity), AlignDown(to, granularity)
}

// AlignDown truncates t to the start of its period in UTC.
func AlignDown(t time.Time, granularity string) time.Time {
	t = t.UTC()
	switch granularity {
	case "daily":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "weekly":
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		off := (int(day.Weekday()) + 6) % 7 // Monday anchor
		return day.AddDate(0, 0, -off)
	case "monthly":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}
