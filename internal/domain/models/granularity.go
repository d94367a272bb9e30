package models

import "time"

// Granularity represents the temporal resolution of a forecast.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Granularities lists all supported granularities in ascending period size.
func Granularities() []Granularity {
	return []Granularity{Hourly, Daily, Weekly, Monthly}
}

// IsValidGranularity returns true if g is supported.
func IsValidGranularity(g Granularity) bool {
	switch g {
	case Hourly, Daily, Weekly, Monthly:
		return true
	default:
		return false
	}
}

// DefaultGranularity returns the default granularity.
func DefaultGranularity() Granularity { return Daily }

// NormalizeGranularity converts a raw string to a valid granularity (or default).
func NormalizeGranularity(s string) Granularity {
	if s == "" {
		return DefaultGranularity()
	}
	g := Granularity(s)
	if IsValidGranularity(g) {
		return g
	}
	return DefaultGranularity()
}

// PeriodStart truncates t to the start of the period containing it.
// Weeks are Monday-anchored calendar weeks.
func (g Granularity) PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Hourly:
		return t.Truncate(time.Hour)
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Monday = 0 offset
		off := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -off)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// NextPeriod returns the start of the period following the one starting at t.
func (g Granularity) NextPeriod(t time.Time) time.Time {
	switch g {
	case Hourly:
		return t.Add(time.Hour)
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.Add(time.Hour)
	}
}

// PeriodHours returns the number of hourly rows a complete period must contain.
// For monthly periods the count depends on the period start's calendar month.
func (g Granularity) PeriodHours(start time.Time) int {
	switch g {
	case Hourly:
		return 1
	case Daily:
		return 24
	case Weekly:
		return 7 * 24
	case Monthly:
		return int(g.NextPeriod(start).Sub(start).Hours())
	default:
		return 1
	}
}
