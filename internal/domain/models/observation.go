package models

import (
	"math"
	"time"
)

// Missing returns the explicit missing-value marker used in aligned records
// and feature rows. Missing values are never zero and never interpolated at
// alignment time; downstream fill policies decide what happens to them.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// RawObservation is one timestamped record from a single external source.
// Timestamps must be hour-aligned and in UTC. Immutable once ingested.
type RawObservation struct {
	Timestamp time.Time
	Values    map[string]float64 // column -> value
}

// SourceSeries is the full set of observations from one source, with the
// columns that source contributes to the aligned timeline.
type SourceSeries struct {
	Source  string
	Columns []string
	Obs     []RawObservation
}

// AlignedRecord is one row of the canonical hourly timeline: the union of all
// sources' values for that hour, with Missing() where a source had no data.
type AlignedRecord struct {
	Timestamp time.Time
	Values    map[string]float64
}

// AlignedSeries is the hourly spine covering the union of all sources' spans,
// exactly one record per hour, no gaps, no duplicates.
type AlignedSeries struct {
	Start   time.Time
	Columns []string
	Records []AlignedRecord
}

// End returns the timestamp of the last record, or Start for an empty series.
func (s *AlignedSeries) End() time.Time {
	if len(s.Records) == 0 {
		return s.Start
	}
	return s.Records[len(s.Records)-1].Timestamp
}
