package model

import (
	"fmt"
	"math"
	"time"

	"GridSpend/internal/domain/models"
)

// TrainedModel is a fitted regressor plus everything needed to apply it:
// the schema it expects, the calibration factor derived from holdout
// residuals, and the time cutoff that separated fit from holdout.
type TrainedModel struct {
	Granularity models.Granularity
	Schema      models.Schema
	Cutoff      time.Time
	Calibration float64
	Regressor   Regressor
	Holdout     models.HoldoutMetrics
	TrainedAt   time.Time
}

// Artifact serializes the model for persistence.
func (m *TrainedModel) Artifact() (*models.ModelArtifact, error) {
	params, err := m.Regressor.MarshalParams()
	if err != nil {
		return nil, fmt.Errorf("marshal %s regressor: %w", m.Regressor.Kind(), err)
	}
	return &models.ModelArtifact{
		Granularity:       m.Granularity,
		SchemaVersion:     m.Schema.Version,
		SchemaFingerprint: m.Schema.Fingerprint(),
		Columns:           append([]string(nil), m.Schema.Columns...),
		Cutoff:            m.Cutoff,
		Calibration:       m.Calibration,
		RegressorKind:     m.Regressor.Kind(),
		RegressorParams:   params,
		Holdout:           m.Holdout,
		TrainedAt:         m.TrainedAt,
	}, nil
}

// FromArtifact restores a trained model from its serialized form.
func FromArtifact(a *models.ModelArtifact) (*TrainedModel, error) {
	reg, err := UnmarshalRegressor(a.RegressorKind, a.RegressorParams)
	if err != nil {
		return nil, err
	}
	schema := models.Schema{Version: a.SchemaVersion, Columns: append([]string(nil), a.Columns...)}
	if fp := schema.Fingerprint(); fp != a.SchemaFingerprint {
		return nil, &models.SchemaMismatchError{Granularity: a.Granularity, Want: a.SchemaFingerprint, Got: fp}
	}
	return &TrainedModel{
		Granularity: a.Granularity,
		Schema:      schema,
		Cutoff:      a.Cutoff,
		Calibration: a.Calibration,
		Regressor:   reg,
		Holdout:     a.Holdout,
		TrainedAt:   a.TrainedAt,
	}, nil
}

// TrainerConfig controls one training run. When Cutoff is zero the split
// point is taken at HoldoutFraction from the end of the trainable rows.
type TrainerConfig struct {
	MinRows         int
	HoldoutFraction float64
	Cutoff          time.Time
	Hyper           Hyperparams
	Now             func() time.Time
}

func (c TrainerConfig) withDefaults() TrainerConfig {
	if c.MinRows == 0 {
		c.MinRows = 24
	}
	if c.HoldoutFraction == 0 {
		c.HoldoutFraction = 0.2
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// TrainResult carries the fitted model and the holdout rows its calibration
// factor was derived from, so the calibration is reproducible from the rows.
type TrainResult struct {
	Model   *TrainedModel
	Holdout []models.PredictionRow
}

// Train fits a regressor on the rows strictly before the cutoff and derives
// the calibration factor from residuals on the rows at or after it.
func Train(table *models.Table, cfg TrainerConfig) (*TrainResult, error) {
	cfg = cfg.withDefaults()
	if cfg.Hyper.Kind == "" {
		cfg.Hyper = DefaultHyperparams(table.Granularity)
	}

	rows := table.Trainable()
	if len(rows) < cfg.MinRows {
		return nil, &models.InsufficientDataError{Granularity: table.Granularity, Rows: len(rows), Min: cfg.MinRows}
	}

	cutoff := cfg.Cutoff
	if cutoff.IsZero() {
		split := len(rows) - int(math.Ceil(float64(len(rows))*cfg.HoldoutFraction))
		if split <= 0 || split >= len(rows) {
			return nil, &models.InsufficientDataError{Granularity: table.Granularity, Rows: len(rows), Min: cfg.MinRows}
		}
		cutoff = rows[split].Period
	}

	var fit, hold []models.FeatureRow
	for _, r := range rows {
		if r.Period.Before(cutoff) {
			fit = append(fit, r)
		} else {
			hold = append(hold, r)
		}
	}
	if len(fit) == 0 || len(hold) == 0 {
		return nil, &models.InsufficientDataError{Granularity: table.Granularity, Rows: len(rows), Min: cfg.MinRows}
	}

	X := make([][]float64, len(fit))
	y := make([]float64, len(fit))
	for i, r := range fit {
		X[i] = r.Features
		y[i] = r.Target
	}

	reg, err := NewRegressor(cfg.Hyper)
	if err != nil {
		return nil, err
	}
	if err := reg.Fit(X, y); err != nil {
		return nil, fmt.Errorf("%s: fit: %w", table.Granularity, err)
	}

	holdout := make([]models.PredictionRow, len(hold))
	var sumActual, sumResid, sumAbs float64
	for i, r := range hold {
		raw := reg.Predict(r.Features)
		resid := r.Target - raw
		sumActual += r.Target
		sumResid += resid
		sumAbs += math.Abs(resid)
		holdout[i] = models.PredictionRow{
			Granularity: table.Granularity,
			Period:      r.Period,
			Raw:         raw,
			Actual:      r.Target,
			HasActual:   true,
			Residual:    resid,
		}
	}

	n := float64(len(hold))
	meanActual := sumActual / n
	meanResid := sumResid / n
	calibration := 1.0
	if meanActual != 0 {
		calibration = 1 + meanResid/meanActual
	}
	for i := range holdout {
		holdout[i].Predicted = clampCost(calibration * holdout[i].Raw)
	}

	m := &TrainedModel{
		Granularity: table.Granularity,
		Schema:      table.Schema,
		Cutoff:      cutoff,
		Calibration: calibration,
		Regressor:   reg,
		Holdout: models.HoldoutMetrics{
			N:            len(hold),
			MeanActual:   meanActual,
			MeanResidual: meanResid,
			MAE:          sumAbs / n,
		},
		TrainedAt: cfg.Now().UTC(),
	}
	return &TrainResult{Model: m, Holdout: holdout}, nil
}

// clampCost floors predictions at zero; a negative cost is never meaningful.
func clampCost(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
