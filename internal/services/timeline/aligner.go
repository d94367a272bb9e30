package timeline

import (
	"fmt"
	"sort"
	"time"

	"GridSpend/internal/domain/models"
)

// Align normalizes raw per-source observations onto a common hourly spine.
// The spine covers the union of hours from the earliest to the latest
// observation across all sources, at exactly one-hour spacing with no gaps.
// Hours where a source lacks data get the explicit missing marker, never zero
// and never an interpolation; fill policy is the feature builder's decision.
//
// A source with zero observations fails with DataGapError. Duplicate
// timestamps within a source keep the last observation, matching how the
// upstream drops are deduplicated.
func Align(series []*models.SourceSeries) (*models.AlignedSeries, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("align: no sources")
	}

	var start, end time.Time
	for _, s := range series {
		if len(s.Obs) == 0 {
			return nil, &models.DataGapError{Source: s.Source, From: start, To: end}
		}
		first, last := sourceSpan(s)
		if start.IsZero() || first.Before(start) {
			start = first
		}
		if end.IsZero() || last.After(end) {
			end = last
		}
	}

	start = start.UTC().Truncate(time.Hour)
	end = end.UTC().Truncate(time.Hour)
	hours := int(end.Sub(start).Hours()) + 1

	columns := make([]string, 0, 8)
	for _, s := range series {
		columns = append(columns, s.Columns...)
	}

	out := &models.AlignedSeries{
		Start:   start,
		Columns: columns,
		Records: make([]models.AlignedRecord, hours),
	}
	for i := range out.Records {
		values := make(map[string]float64, len(columns))
		for _, c := range columns {
			values[c] = models.Missing()
		}
		out.Records[i] = models.AlignedRecord{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    values,
		}
	}

	for _, s := range series {
		obs := append([]models.RawObservation(nil), s.Obs...)
		sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })
		for _, o := range obs {
			ts := o.Timestamp.UTC().Truncate(time.Hour)
			idx := int(ts.Sub(start).Hours())
			if idx < 0 || idx >= hours {
				continue
			}
			for _, c := range s.Columns {
				if v, ok := o.Values[c]; ok {
					out.Records[idx].Values[c] = v
				}
			}
		}
	}

	return out, nil
}

func sourceSpan(s *models.SourceSeries) (first, last time.Time) {
	first = s.Obs[0].Timestamp
	last = s.Obs[0].Timestamp
	for _, o := range s.Obs[1:] {
		if o.Timestamp.Before(first) {
			first = o.Timestamp
		}
		if o.Timestamp.After(last) {
			last = o.Timestamp
		}
	}
	return first, last
}
