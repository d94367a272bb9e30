package model

import (
	"math"
	"testing"
	"time"

	"GridSpend/internal/domain/models"
)

func TestSummarizeMetrics(t *testing.T) {
	rows := []models.PredictionRow{
		{Predicted: 2, Actual: 4, HasActual: true},
		{Predicted: 3, Actual: 2, HasActual: true},
	}
	rep := Summarize(models.Daily, "2024", rows)
	if rep.N != 2 {
		t.Fatalf("expected 2 rows, got %d", rep.N)
	}
	if math.Abs(rep.MAE-1.5) > 1e-12 {
		t.Fatalf("expected MAE 1.5, got %v", rep.MAE)
	}
	wantRMSE := math.Sqrt((4.0 + 1.0) / 2.0)
	if math.Abs(rep.RMSE-wantRMSE) > 1e-12 {
		t.Fatalf("expected RMSE %v, got %v", wantRMSE, rep.RMSE)
	}
	wantMAPE := (0.5 + 0.5) / 2 * 100
	if math.Abs(rep.MAPE-wantMAPE) > 1e-12 {
		t.Fatalf("expected MAPE %v, got %v", wantMAPE, rep.MAPE)
	}
}

func TestSummarizeExcludesZeroActualFromMAPE(t *testing.T) {
	rows := []models.PredictionRow{
		{Predicted: 1, Actual: 0, HasActual: true},
		{Predicted: 2, Actual: 4, HasActual: true},
	}
	rep := Summarize(models.Daily, "2024", rows)
	if rep.Excluded != 1 {
		t.Fatalf("expected one excluded row, got %d", rep.Excluded)
	}
	if math.Abs(rep.MAPE-50) > 1e-12 {
		t.Fatalf("MAPE should only cover nonzero actuals, got %v", rep.MAPE)
	}
	if rep.N != 2 {
		t.Fatalf("zero-actual row still counts for MAE/RMSE, got N=%d", rep.N)
	}
}

func TestSummarizeAllZeroActuals(t *testing.T) {
	rows := []models.PredictionRow{
		{Predicted: 1, Actual: 0, HasActual: true},
	}
	rep := Summarize(models.Daily, "2024", rows)
	if rep.MAPE != 0 {
		t.Fatalf("MAPE must stay zero when every actual is excluded, got %v", rep.MAPE)
	}
}

func TestSummarizeSkipsRowsWithoutActuals(t *testing.T) {
	rows := []models.PredictionRow{
		{Predicted: 5},
		{Predicted: 2, Actual: 2, HasActual: true},
	}
	rep := Summarize(models.Daily, "2024", rows)
	if rep.N != 1 {
		t.Fatalf("forecast-only rows must not count, got N=%d", rep.N)
	}
	if rep.MAE != 0 {
		t.Fatalf("expected MAE 0 on the perfect row, got %v", rep.MAE)
	}
}

func TestYearPeriods(t *testing.T) {
	table := &models.Table{Granularity: models.Daily}
	for _, y := range []int{2022, 2024} {
		table.Rows = append(table.Rows, models.FeatureRow{
			Period:    time.Date(y, 5, 1, 0, 0, 0, 0, time.UTC),
			HasTarget: true,
		})
	}
	// An incomplete row must not create a period.
	table.Rows = append(table.Rows, models.FeatureRow{
		Period:     time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		HasTarget:  true,
		Incomplete: true,
	})
	periods := YearPeriods(table)
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].Label != "2022" || periods[1].Label != "2024" {
		t.Fatalf("unexpected labels %s %s", periods[0].Label, periods[1].Label)
	}
	if !periods[0].From.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period start %v", periods[0].From)
	}
}

func TestBacktestPerYearPlusAggregate(t *testing.T) {
	table := costTable(24 * 40) // spans 2024 only
	res, err := Train(table, trainerConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	reports, err := NewEvaluator(res.Model).Backtest(table, nil)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected one year report plus aggregate, got %d", len(reports))
	}
	if reports[0].Period != "2024" {
		t.Fatalf("expected 2024, got %s", reports[0].Period)
	}
	last := reports[len(reports)-1]
	if last.Period != "aggregate" {
		t.Fatalf("expected trailing aggregate report, got %s", last.Period)
	}
	if last.N != reports[0].N {
		t.Fatalf("single-year aggregate should pool the same rows: %d vs %d", last.N, reports[0].N)
	}
}

func TestBacktestSkipsIncompleteRows(t *testing.T) {
	table := costTable(100)
	res, err := Train(table, trainerConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	marked := table.Clone()
	marked.Rows[len(marked.Rows)-1].Incomplete = true

	want := 0
	for _, r := range marked.Rows {
		if !r.Incomplete && !r.Period.Before(res.Model.Cutoff) {
			want++
		}
	}

	reports, err := NewEvaluator(res.Model).Backtest(marked, nil)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	if reports[0].N != want {
		t.Fatalf("expected %d evaluable rows, got N=%d", want, reports[0].N)
	}
}

func TestBacktestScoresOnlyHeldOutRows(t *testing.T) {
	// 480 hours straddling the year boundary: 288 in 2023, 192 in 2024.
	table := costTableFrom(time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC), 480)
	cfg := trainerConfig()
	cfg.Cutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := Train(table, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	reports, err := NewEvaluator(res.Model).Backtest(table, nil)
	if err != nil {
		t.Fatalf("backtest: %v", err)
	}
	for _, rep := range reports {
		if rep.Period == "2023" {
			t.Fatalf("fit-window year must not be scored")
		}
	}
	if reports[0].Period != "2024" {
		t.Fatalf("expected the held-out year first, got %s", reports[0].Period)
	}
	if reports[0].N != 192 {
		t.Fatalf("expected the 192 post-cutoff rows, got N=%d", reports[0].N)
	}
	for _, r := range reports[0].Rows {
		if r.Period.Before(res.Model.Cutoff) {
			t.Fatalf("scored row %v precedes the training cutoff", r.Period)
		}
	}
}
