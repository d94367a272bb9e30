package models

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// TargetColumn is the name of the target variable at every granularity.
// Hourly rows carry the estimated hourly cost; coarser rows carry its sum
// over the period.
const TargetColumn = "Estimated_Hourly_Cost_USD"

// SchemaVersion is bumped whenever the feature column set or its derivation
// changes incompatibly, so stale model artifacts are rejected at load time
// instead of silently misapplied.
const SchemaVersion = 1

// Schema is the versioned, ordered feature column set of a table. A trained
// model records the fingerprint of the schema it was fitted against and
// refuses tables with a different one.
type Schema struct {
	Version int
	Columns []string
}

// Fingerprint returns a stable identifier of version + ordered columns.
func (s Schema) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "v%d|", s.Version)
	h.Write([]byte(strings.Join(s.Columns, ",")))
	return fmt.Sprintf("v%d-%016x", s.Version, h.Sum64())
}

// Index returns the position of column name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FeatureRow is one period of a granularity table. Features are ordered per
// the table schema. Lag and rolling features reference only records strictly
// at or before Period (no look-ahead).
type FeatureRow struct {
	Period     time.Time
	Features   []float64
	Target     float64
	HasTarget  bool
	Incomplete bool // in-progress final period, excluded from training and strict queries
}

// Table is an ordered sequence of FeatureRows for one granularity, sorted by
// period ascending with no duplicate period keys. Tables are passed between
// pipeline stages as immutable snapshots; no stage mutates its input.
type Table struct {
	Granularity Granularity
	Schema      Schema
	Rows        []FeatureRow
}

// Trainable returns the rows usable for fitting: target known, period
// complete, and every feature present.
func (t *Table) Trainable() []FeatureRow {
	out := make([]FeatureRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		if !r.HasTarget || r.Incomplete {
			continue
		}
		ok := true
		for _, v := range r.Features {
			if IsMissing(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

// Complete returns the rows of complete periods (with or without target).
func (t *Table) Complete() []FeatureRow {
	out := make([]FeatureRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		if !r.Incomplete {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy; stages that extend a table work on a clone so
// the input snapshot stays untouched.
func (t *Table) Clone() *Table {
	cp := &Table{
		Granularity: t.Granularity,
		Schema:      Schema{Version: t.Schema.Version, Columns: append([]string(nil), t.Schema.Columns...)},
		Rows:        make([]FeatureRow, len(t.Rows)),
	}
	for i, r := range t.Rows {
		r.Features = append([]float64(nil), r.Features...)
		cp.Rows[i] = r
	}
	return cp
}
