package model

import (
	"fmt"
	"time"

	"GridSpend/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Exogenous supplies the feature vector for a future period that has no
// observed data yet. The history table includes any earlier synthetic rows
// appended during the same forecast, so implementations can feed predicted
// cost back into lag and rolling columns.
type Exogenous interface {
	Row(period time.Time, schema models.Schema, history *models.Table) ([]float64, error)
}

// Predictor applies a trained model to feature tables of the same schema.
type Predictor struct {
	model *TrainedModel
}

func NewPredictor(m *TrainedModel) *Predictor {
	return &Predictor{model: m}
}

// Predict scores every row of the table. A row with missing features gets
// each gap substituted with the most recent known value of that column; a
// column never seen substitutes zero. Rows flagged Incomplete are scored and
// carry the flag through.
func (p *Predictor) Predict(table *models.Table) ([]models.PredictionRow, error) {
	if err := p.checkSchema(table); err != nil {
		return nil, err
	}

	nf := len(p.model.Schema.Columns)
	lastKnown := make([]float64, nf)
	seen := make([]bool, nf)
	buf := make([]float64, nf)

	out := make([]models.PredictionRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		raw := p.score(r.Features, lastKnown, seen, buf)
		row := models.PredictionRow{
			Granularity: table.Granularity,
			Period:      r.Period,
			Raw:         raw,
			Predicted:   clampCost(p.model.Calibration * raw),
			Incomplete:  r.Incomplete,
		}
		if r.HasTarget {
			row.Actual = r.Target
			row.HasActual = true
			row.Residual = r.Target - raw
		}
		out = append(out, row)
	}
	return out, nil
}

// Forecast extends the table horizon periods past its last row, feeding each
// predicted cost back as the target of a synthetic row so later lags and
// rolling windows see it. Returns only the forecast rows.
func (p *Predictor) Forecast(table *models.Table, horizon int, exo Exogenous) ([]models.PredictionRow, error) {
	if err := p.checkSchema(table); err != nil {
		return nil, err
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("forecast: horizon must be positive, got %d", horizon)
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("forecast: %s table is empty", table.Granularity)
	}

	nf := len(p.model.Schema.Columns)
	lastKnown := make([]float64, nf)
	seen := make([]bool, nf)
	buf := make([]float64, nf)
	// Warm the substitution state on the observed rows so the first synthetic
	// row inherits real values, not zeros.
	for _, r := range table.Rows {
		p.score(r.Features, lastKnown, seen, buf)
	}

	work := table.Clone()
	out := make([]models.PredictionRow, 0, horizon)
	for h := 0; h < horizon; h++ {
		period := work.Granularity.NextPeriod(work.Rows[len(work.Rows)-1].Period)
		feats, err := exo.Row(period, work.Schema, work)
		if err != nil {
			return nil, fmt.Errorf("forecast: exogenous row for %s: %w", period.Format(time.RFC3339), err)
		}
		if len(feats) != nf {
			return nil, fmt.Errorf("forecast: exogenous row has %d features, schema has %d", len(feats), nf)
		}

		raw := p.score(feats, lastKnown, seen, buf)
		predicted := clampCost(p.model.Calibration * raw)
		out = append(out, models.PredictionRow{
			Granularity: work.Granularity,
			Period:      period,
			Raw:         raw,
			Predicted:   predicted,
		})
		work.Rows = append(work.Rows, models.FeatureRow{
			Period:   period,
			Features: feats,
			Target:   predicted,
		})
	}
	return out, nil
}

// checkSchema compares granularity alongside the fingerprint: aggregated
// tables inherit the hourly column set, so the fingerprint alone cannot tell
// a daily table from the hourly one.
func (p *Predictor) checkSchema(table *models.Table) error {
	want := fmt.Sprintf("%s/%s", p.model.Granularity, p.model.Schema.Fingerprint())
	got := fmt.Sprintf("%s/%s", table.Granularity, table.Schema.Fingerprint())
	if want != got {
		return &models.SchemaMismatchError{Granularity: table.Granularity, Want: want, Got: got}
	}
	return nil
}

// score substitutes missing features in-place into buf and runs the
// regressor, updating the most-recent-known state as a side effect.
func (p *Predictor) score(features, lastKnown []float64, seen []bool, buf []float64) float64 {
	for j, v := range features {
		if models.IsMissing(v) {
			if seen[j] {
				buf[j] = lastKnown[j]
			} else {
				buf[j] = 0
			}
			continue
		}
		buf[j] = v
		lastKnown[j] = v
		seen[j] = true
	}
	return p.model.Regressor.Predict(buf)
}

// CarryForward is the default exogenous source for hourly horizon extension:
// source columns repeat the last observed values, temporal columns are
// recomputed from the period, and lag and rolling cost columns are rebuilt
// from the trailing history (including fed-back predictions).
type CarryForward struct {
	LoadColumn string
}

func NewCarryForward(loadColumn string) *CarryForward {
	return &CarryForward{LoadColumn: loadColumn}
}

func (c *CarryForward) Row(period time.Time, schema models.Schema, history *models.Table) ([]float64, error) {
	if len(history.Rows) == 0 {
		return nil, fmt.Errorf("carry-forward needs at least one history row")
	}
	last := history.Rows[len(history.Rows)-1]
	feats := append([]float64(nil), last.Features...)
	loadIdx := schema.Index(c.LoadColumn)

	for j, name := range schema.Columns {
		switch name {
		case "hour":
			feats[j] = float64(period.Hour())
		case "dayofweek":
			feats[j] = float64((int(period.Weekday()) + 6) % 7)
		case "month":
			feats[j] = float64(int(period.Month()))
		case "year":
			feats[j] = float64(period.Year())
		default:
			var n int
			if _, err := fmt.Sscanf(name, "cost_lag_%dh", &n); err == nil && lagMatches(name, "cost_lag_%dh", n) {
				if ref := len(history.Rows) - n; ref >= 0 {
					feats[j] = history.Rows[ref].Target
				}
				continue
			}
			if _, err := fmt.Sscanf(name, "load_lag_%dh", &n); err == nil && lagMatches(name, "load_lag_%dh", n) {
				if ref := len(history.Rows) - n; ref >= 0 && loadIdx >= 0 {
					feats[j] = history.Rows[ref].Features[loadIdx]
				}
				continue
			}
			if _, err := fmt.Sscanf(name, "cost_roll_mean_%dh", &n); err == nil && lagMatches(name, "cost_roll_mean_%dh", n) {
				if w := trailingTargets(history, n); w != nil {
					feats[j] = stat.Mean(w, nil)
				}
				continue
			}
			if _, err := fmt.Sscanf(name, "cost_roll_std_%dh", &n); err == nil && lagMatches(name, "cost_roll_std_%dh", n) {
				if w := trailingTargets(history, n); w != nil {
					_, feats[j] = stat.MeanStdDev(w, nil)
				}
				continue
			}
			// source columns and anything else carry forward as-is
		}
	}
	return feats, nil
}

// lagMatches guards against Sscanf accepting a prefix: the parsed value must
// reproduce the full column name.
func lagMatches(name, format string, n int) bool {
	return fmt.Sprintf(format, n) == name
}

func trailingTargets(history *models.Table, window int) []float64 {
	if window <= 1 || len(history.Rows) < window {
		return nil
	}
	w := make([]float64, window)
	for i := 0; i < window; i++ {
		r := history.Rows[len(history.Rows)-window+i]
		if !r.HasTarget && models.IsMissing(r.Target) {
			return nil
		}
		w[i] = r.Target
	}
	return w
}
