package models

import "time"

// PredictionRow pairs a period with a predicted value. Raw is the regressor
// output before the calibration factor; Predicted is after. When ground truth
// exists the actual value and residual (actual - raw) are carried too.
type PredictionRow struct {
	Granularity Granularity
	Period      time.Time
	Raw         float64
	Predicted   float64
	Actual      float64
	HasActual   bool
	Residual    float64
	Incomplete  bool // forecast-only row for an in-progress period
}

// EvaluationReport holds backtest metrics for one granularity and one
// held-out period. MAPE excludes rows with actual == 0; Excluded counts them.
type EvaluationReport struct {
	Granularity Granularity
	Period      string // e.g. "2023" or "aggregate"
	N           int
	Excluded    int
	MAE         float64
	RMSE        float64
	MAPE        float64
	R2          float64
	Rows        []PredictionRow
}
