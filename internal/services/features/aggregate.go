package features

import (
	"fmt"
	"time"

	"GridSpend/internal/domain/models"
)

// Aggregate rolls the hourly feature table up to the requested granularity.
// Grouping is on the period key (calendar day, Monday-anchored week, calendar
// month). Per-feature rules: the target is summed (spending accumulates),
// temporal columns take the period's first row, everything else is averaged
// over the rows where it is present.
//
// A period is included only when it holds the complete set of hourly rows.
// The in-progress final period is the exception: it is kept as a row
// explicitly flagged Incomplete so prediction queries can use it while
// strict-complete evaluation queries skip it.
func Aggregate(hourly *models.Table, g models.Granularity) (*models.Table, error) {
	if hourly.Granularity != models.Hourly {
		return nil, fmt.Errorf("aggregate: input must be hourly, got %s", hourly.Granularity)
	}
	if g == models.Hourly {
		return hourly, nil
	}
	if !models.IsValidGranularity(g) {
		return nil, fmt.Errorf("aggregate: unsupported granularity %q", g)
	}

	temporal := make(map[int]bool, len(TemporalColumns))
	for i, name := range hourly.Schema.Columns {
		for _, t := range TemporalColumns {
			if name == t {
				temporal[i] = true
			}
		}
	}

	out := &models.Table{
		Granularity: g,
		Schema:      models.Schema{Version: hourly.Schema.Version, Columns: append([]string(nil), hourly.Schema.Columns...)},
	}

	var group []models.FeatureRow
	var periodStart time.Time
	flush := func(isLast bool) {
		if len(group) == 0 {
			return
		}
		start := periodStart
		complete := len(group) == g.PeriodHours(start)
		if !complete && !isLast {
			// partial period in the middle of history: excluded outright
			group = group[:0]
			return
		}
		out.Rows = append(out.Rows, reduce(group, start, temporal, !complete))
		group = group[:0]
	}

	for _, row := range hourly.Rows {
		start := g.PeriodStart(row.Period)
		if len(group) > 0 && !start.Equal(periodStart) {
			flush(false)
		}
		if len(group) == 0 {
			periodStart = start
		}
		group = append(group, row)
	}
	flush(true)

	return out, nil
}

func reduce(group []models.FeatureRow, start time.Time, temporal map[int]bool, incomplete bool) models.FeatureRow {
	nf := len(group[0].Features)
	feats := make([]float64, nf)
	for j := 0; j < nf; j++ {
		if temporal[j] {
			feats[j] = group[0].Features[j]
			continue
		}
		sum := 0.0
		n := 0
		for _, r := range group {
			v := r.Features[j]
			if models.IsMissing(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			feats[j] = models.Missing()
		} else {
			feats[j] = sum / float64(n)
		}
	}

	target := 0.0
	hasTarget := true
	for _, r := range group {
		if !r.HasTarget {
			hasTarget = false
			break
		}
		target += r.Target
	}
	if !hasTarget {
		target = models.Missing()
	}

	return models.FeatureRow{
		Period:     start,
		Features:   feats,
		Target:     target,
		HasTarget:  hasTarget,
		Incomplete: incomplete,
	}
}
