package model

import (
	"math"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func trainedOnCostTable(t *testing.T, n int) (*TrainedModel, *models.Table) {
	t.Helper()
	table := costTable(n)
	res, err := Train(table, trainerConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return res.Model, table
}

func TestPredictCalibratesAndClamps(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	rows, err := NewPredictor(m).Predict(table)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(rows) != len(table.Rows) {
		t.Fatalf("expected %d rows, got %d", len(table.Rows), len(rows))
	}
	for _, r := range rows {
		calibrated := m.Calibration * r.Raw
		if calibrated < 0 {
			calibrated = 0
		}
		if math.Abs(r.Predicted-calibrated) > 1e-12 {
			t.Fatalf("predicted %v, want calibrated %v", r.Predicted, calibrated)
		}
		if !r.HasActual {
			t.Fatalf("observed row lost its actual")
		}
		if math.Abs(r.Residual-(r.Actual-r.Raw)) > 1e-12 {
			t.Fatalf("residual must be against the raw prediction")
		}
	}
}

func TestPredictSchemaMismatch(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	other := table.Clone()
	other.Schema = models.Schema{Version: models.SchemaVersion, Columns: []string{"load", "hour"}}
	_, err := NewPredictor(m).Predict(other)
	if _, ok := err.(*models.SchemaMismatchError); !ok {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
}

func TestPredictRejectsWrongGranularityTable(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	// Aggregated tables keep the hourly column set, so the fingerprint alone
	// would match; only the granularity differs.
	other := table.Clone()
	other.Granularity = models.Daily
	_, err := NewPredictor(m).Predict(other)
	if _, ok := err.(*models.SchemaMismatchError); !ok {
		t.Fatalf("expected SchemaMismatchError for a daily table, got %v", err)
	}
}

func TestPredictReproducesTrainingResiduals(t *testing.T) {
	table := costTable(100)
	cfg := trainerConfig()
	cfg.Cutoff = table.Rows[80].Period
	res, err := Train(table, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	holdTable := &models.Table{
		Granularity: table.Granularity,
		Schema:      table.Schema,
		Rows:        table.Rows[80:],
	}
	rows, err := NewPredictor(res.Model).Predict(holdTable)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(rows) != len(res.Holdout) {
		t.Fatalf("expected %d rows, got %d", len(res.Holdout), len(rows))
	}
	for i := range rows {
		if !rows[i].Period.Equal(res.Holdout[i].Period) {
			t.Fatalf("row %d: period %v, want %v", i, rows[i].Period, res.Holdout[i].Period)
		}
		if rows[i].Raw != res.Holdout[i].Raw {
			t.Fatalf("row %d: raw %v differs from the training holdout's %v", i, rows[i].Raw, res.Holdout[i].Raw)
		}
		if rows[i].Residual != res.Holdout[i].Residual {
			t.Fatalf("row %d: residual %v differs from the training holdout's %v", i, rows[i].Residual, res.Holdout[i].Residual)
		}
		if rows[i].Predicted != res.Holdout[i].Predicted {
			t.Fatalf("row %d: calibrated prediction %v differs from the training holdout's %v", i, rows[i].Predicted, res.Holdout[i].Predicted)
		}
	}
}

func TestPredictSubstitutesLastKnown(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	p := NewPredictor(m)

	gapped := table.Clone()
	last := len(gapped.Rows) - 1
	prev := gapped.Rows[last-1].Features[1]
	gapped.Rows[last].Features = []float64{gapped.Rows[last].Features[0], models.Missing()}

	rows, err := p.Predict(gapped)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	substituted := append([]float64(nil), gapped.Rows[last].Features...)
	substituted[1] = prev
	if rows[last].Raw != m.Regressor.Predict(substituted) {
		t.Fatalf("missing feature not substituted with the last known value")
	}
}

func TestPredictIncompleteFlagCarries(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	marked := table.Clone()
	marked.Rows[len(marked.Rows)-1].Incomplete = true
	rows, err := NewPredictor(m).Predict(marked)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !rows[len(rows)-1].Incomplete {
		t.Fatalf("incomplete flag dropped")
	}
}

func TestForecastExtendsHourly(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	rows, err := NewPredictor(m).Forecast(table, 5, NewCarryForward("load"))
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 forecast rows, got %d", len(rows))
	}
	lastObserved := table.Rows[len(table.Rows)-1].Period
	for i, r := range rows {
		want := lastObserved.Add(time.Duration(i+1) * time.Hour)
		if !r.Period.Equal(want) {
			t.Fatalf("row %d: expected period %v, got %v", i, want, r.Period)
		}
		if r.HasActual {
			t.Fatalf("forecast row must not carry an actual")
		}
		if r.Predicted < 0 {
			t.Fatalf("negative cost forecast %v", r.Predicted)
		}
	}
}

func TestForecastRejectsBadHorizon(t *testing.T) {
	m, table := trainedOnCostTable(t, 100)
	if _, err := NewPredictor(m).Forecast(table, 0, NewCarryForward("load")); err == nil {
		t.Fatalf("expected error for zero horizon")
	}
}

func TestCarryForwardRebuildsDerivedColumns(t *testing.T) {
	schema := models.Schema{
		Version: models.SchemaVersion,
		Columns: []string{"hour", "dayofweek", "month", "year", "load", "load_lag_2h", "cost_lag_1h", "cost_roll_mean_3h"},
	}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday
	history := &models.Table{Granularity: models.Hourly, Schema: schema}
	for i := 0; i < 4; i++ {
		history.Rows = append(history.Rows, models.FeatureRow{
			Period:    start.Add(time.Duration(i) * time.Hour),
			Features:  []float64{float64(i), 0, 3, 2024, 100 + float64(i), 0, 0, 0},
			Target:    float64(i + 1),
			HasTarget: true,
		})
	}

	period := start.Add(4 * time.Hour)
	feats, err := NewCarryForward("load").Row(period, schema, history)
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if feats[0] != 4 || feats[1] != 0 || feats[2] != 3 || feats[3] != 2024 {
		t.Fatalf("temporal columns not recomputed: %v", feats[:4])
	}
	if feats[4] != 103 {
		t.Fatalf("load should carry forward, got %v", feats[4])
	}
	if feats[5] != 102 {
		t.Fatalf("load_lag_2h should be the load two rows back, got %v", feats[5])
	}
	if feats[6] != 4 {
		t.Fatalf("cost_lag_1h should be the last target, got %v", feats[6])
	}
	want := (2.0 + 3.0 + 4.0) / 3.0
	if math.Abs(feats[7]-want) > 1e-12 {
		t.Fatalf("cost_roll_mean_3h: expected %v, got %v", want, feats[7])
	}
}

func TestCarryForwardIgnoresLookalikeColumns(t *testing.T) {
	schema := models.Schema{
		Version: models.SchemaVersion,
		Columns: []string{"hour", "cost_lag_1hx"},
	}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	history := &models.Table{Granularity: models.Hourly, Schema: schema}
	history.Rows = append(history.Rows, models.FeatureRow{
		Period:    start,
		Features:  []float64{0, 42},
		Target:    7,
		HasTarget: true,
	})
	feats, err := NewCarryForward("load").Row(start.Add(time.Hour), schema, history)
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if feats[1] != 42 {
		t.Fatalf("lookalike column must carry forward untouched, got %v", feats[1])
	}
}
