package models

import (
	"fmt"
	"time"
)

// DataGapError reports a required source with zero coverage in range.
// Partially missing sources are never an error; they recover through the
// documented fill/drop policies.
type DataGapError struct {
	Source string
	From   time.Time
	To     time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("source %q has no observations in %s..%s",
		e.Source, e.From.Format("2006-01-02"), e.To.Format("2006-01-02"))
}

// SchemaMismatchError reports a feature table whose schema fingerprint does
// not match what a trained model expects.
type SchemaMismatchError struct {
	Granularity Granularity
	Want        string
	Got         string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: table schema %s does not match model schema %s", e.Granularity, e.Got, e.Want)
}

// InsufficientDataError reports too few rows to split and train meaningfully.
type InsufficientDataError struct {
	Granularity Granularity
	Rows        int
	Min         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %d trainable rows, need at least %d", e.Granularity, e.Rows, e.Min)
}

// LeakageGuardError is an internal consistency failure: a lag or rolling
// feature would reference a timestamp at or after the row it is computed for.
type LeakageGuardError struct {
	Column string
	Row    time.Time
	Ref    time.Time
}

func (e *LeakageGuardError) Error() string {
	return fmt.Sprintf("leakage guard: %s for row %s references %s",
		e.Column, e.Row.Format(time.RFC3339), e.Ref.Format(time.RFC3339))
}
