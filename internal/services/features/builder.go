package features

import (
	"fmt"
	"sort"
	"time"

	"GridSpend/internal/domain/models"
)

// FillPolicy decides what happens to a missing value in an aligned column
// before features are derived from it.
type FillPolicy string

const (
	FillDrop    FillPolicy = "drop"         // leave missing; row excluded from training
	FillForward FillPolicy = "forward_fill" // carry the last known value forward
	FillZero    FillPolicy = "zero_fill"    // substitute zero
)

// TemporalColumns are derived purely from the timestamp and are never missing.
var TemporalColumns = []string{"hour", "dayofweek", "month", "year"}

// BuilderConfig is the externally supplied feature-engineering surface.
// Nothing here is a baked-in default; the caller threads an immutable copy
// through the builder and the predictor.
type BuilderConfig struct {
	KWhPerHour    float64               // residential consumption per hour
	LoadColumn    string                // aligned column carrying system load
	PriceColumn   string                // aligned column carrying price in cents/kWh
	LagHours      []int                 // lag offsets, e.g. 1, 24, 168
	RollingWindow int                   // trailing window for cost mean/std
	FillPolicies  map[string]FillPolicy // column -> policy; absent means drop
}

// MaxLag returns the largest configured lag offset.
func (c BuilderConfig) MaxLag() int {
	m := 0
	for _, l := range c.LagHours {
		if l > m {
			m = l
		}
	}
	return m
}

// Warmup is the number of leading hourly rows whose lag or rolling features
// are undefined. Those rows are dropped rather than imputed; fabricating
// history would poison training.
func (c BuilderConfig) Warmup() int {
	w := c.MaxLag()
	if c.RollingWindow > w {
		w = c.RollingWindow
	}
	return w
}

// BuildHourly turns the aligned hourly series into the hourly feature table.
//
// The target is Estimated_Hourly_Cost_USD =
// (load / mean_load) * KWhPerHour * (price / 100), where mean_load is the
// mean of the load column over the span being featurized. It is recomputed on
// every build; freezing it would leak the old span into future extensions of
// the table.
func BuildHourly(series *models.AlignedSeries, cfg BuilderConfig) (*models.Table, error) {
	if cfg.KWhPerHour <= 0 {
		return nil, fmt.Errorf("build hourly: kwh per hour must be positive")
	}
	if cfg.LoadColumn == "" || cfg.PriceColumn == "" {
		return nil, fmt.Errorf("build hourly: load and price columns are required")
	}
	n := len(series.Records)
	if n == 0 {
		return nil, fmt.Errorf("build hourly: empty aligned series")
	}

	// Materialize each aligned column and apply its fill policy.
	cols := make(map[string][]float64, len(series.Columns))
	for _, name := range series.Columns {
		xs := make([]float64, n)
		for i, rec := range series.Records {
			xs[i] = rec.Values[name]
		}
		applyFill(xs, cfg.FillPolicies[name])
		cols[name] = xs
	}
	load, ok := cols[cfg.LoadColumn]
	if !ok {
		return nil, fmt.Errorf("build hourly: aligned series has no column %q", cfg.LoadColumn)
	}
	price, ok := cols[cfg.PriceColumn]
	if !ok {
		return nil, fmt.Errorf("build hourly: aligned series has no column %q", cfg.PriceColumn)
	}

	meanLoad, cnt := Mean(load, models.IsMissing)
	if cnt == 0 || meanLoad == 0 {
		return nil, fmt.Errorf("build hourly: load column %q has no usable values", cfg.LoadColumn)
	}

	target := make([]float64, n)
	hasTarget := make([]bool, n)
	for i := 0; i < n; i++ {
		if models.IsMissing(load[i]) || models.IsMissing(price[i]) {
			target[i] = models.Missing()
			continue
		}
		target[i] = (load[i] / meanLoad) * cfg.KWhPerHour * (price[i] / 100.0)
		hasTarget[i] = true
	}

	rollMean, rollStd, rollOK := RollingMeanStd(target, cfg.RollingWindow)

	schema := buildSchema(series.Columns, cfg)
	table := &models.Table{
		Granularity: models.Hourly,
		Schema:      schema,
		Rows:        make([]models.FeatureRow, 0, n),
	}

	lags := append([]int(nil), cfg.LagHours...)
	sort.Ints(lags)
	warmup := cfg.Warmup()

	for i := warmup; i < n; i++ {
		ts := series.Records[i].Timestamp
		row := models.FeatureRow{
			Period:    ts,
			Features:  make([]float64, 0, len(schema.Columns)),
			Target:    target[i],
			HasTarget: hasTarget[i],
		}

		// Temporal features.
		row.Features = append(row.Features,
			float64(ts.Hour()),
			float64((int(ts.Weekday())+6)%7), // Monday = 0
			float64(int(ts.Month())),
			float64(ts.Year()),
		)

		// Current aligned source values.
		for _, name := range series.Columns {
			row.Features = append(row.Features, cols[name][i])
		}

		// Lag features. References must stay strictly before the row's own
		// timestamp; a non-positive offset fails closed instead of reading
		// the present or the future. The reference timestamp is computed
		// rather than indexed so the guard cannot fault on an offset that
		// points past the series.
		for _, lag := range lags {
			ref := i - lag
			if ref >= i {
				return nil, &models.LeakageGuardError{
					Column: fmt.Sprintf("load_lag_%dh", lag),
					Row:    ts,
					Ref:    ts.Add(-time.Duration(lag) * time.Hour),
				}
			}
			row.Features = append(row.Features, load[ref], target[ref])
		}

		// Rolling cost statistics over the trailing window.
		if !rollOK[i] {
			row.Features = append(row.Features, models.Missing(), models.Missing())
		} else {
			row.Features = append(row.Features, rollMean[i], rollStd[i])
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func buildSchema(sourceCols []string, cfg BuilderConfig) models.Schema {
	lags := append([]int(nil), cfg.LagHours...)
	sort.Ints(lags)
	columns := append([]string(nil), TemporalColumns...)
	columns = append(columns, sourceCols...)
	for _, lag := range lags {
		columns = append(columns, fmt.Sprintf("load_lag_%dh", lag), fmt.Sprintf("cost_lag_%dh", lag))
	}
	columns = append(columns,
		fmt.Sprintf("cost_roll_mean_%dh", cfg.RollingWindow),
		fmt.Sprintf("cost_roll_std_%dh", cfg.RollingWindow),
	)
	return models.Schema{Version: models.SchemaVersion, Columns: columns}
}

func applyFill(xs []float64, policy FillPolicy) {
	switch policy {
	case FillForward:
		last := models.Missing()
		for i, v := range xs {
			if models.IsMissing(v) {
				xs[i] = last
			} else {
				last = v
			}
		}
	case FillZero:
		for i, v := range xs {
			if models.IsMissing(v) {
				xs[i] = 0
			}
		}
	default:
		// drop: leave missing, Trainable() filters the row out
	}
}
