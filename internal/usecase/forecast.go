package usecase

import (
	"context"
	"fmt"
	"time"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	"GridSpend/internal/services/model"
	applogger "GridSpend/pkg/logger"
)

// ForecastUseCase scores feature tables with trained models and publishes
// the rows to the result store.
type ForecastUseCase struct {
	pipeline *Pipeline
	results  domrepo.ResultStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewForecastUseCase(pipeline *Pipeline, results domrepo.ResultStore, metrics domrepo.Metrics, l *applogger.Logger) *ForecastUseCase {
	return &ForecastUseCase{pipeline: pipeline, results: results, metrics: metrics, l: l}
}

type ForecastParams struct {
	Granularity models.Granularity
	Horizon     int // extra periods past the observed table; 0 = score observed only
}

type ForecastResult struct {
	Granularity models.Granularity
	Generated   int
	Extended    int
	Rows        []models.PredictionRow
}

// Forecast scores the table for one granularity and, when a horizon is
// requested, extends it recursively past the last observed period. Hourly
// extension rebuilds lag and rolling columns from fed-back predictions;
// coarser granularities carry the last feature vector forward.
func (uc *ForecastUseCase) Forecast(ctx context.Context, table *models.Table, p ForecastParams) (*ForecastResult, error) {
	if !models.IsValidGranularity(p.Granularity) {
		return nil, fmt.Errorf("unknown granularity %q", p.Granularity)
	}
	if table.Granularity != p.Granularity {
		return nil, fmt.Errorf("table granularity %s does not match requested %s", table.Granularity, p.Granularity)
	}

	start := time.Now()
	m, err := uc.pipeline.LoadModel(ctx, p.Granularity)
	if err != nil {
		return nil, err
	}
	pred := model.NewPredictor(m)

	rows, err := pred.Predict(table)
	if err != nil {
		uc.metrics.RecordError("predict")
		return nil, err
	}

	extended := 0
	if p.Horizon > 0 {
		exo := model.NewCarryForward(uc.pipeline.cfg.Builder.LoadColumn)
		future, err := pred.Forecast(table, p.Horizon, exo)
		if err != nil {
			uc.metrics.RecordError("forecast")
			return nil, err
		}
		rows = append(rows, future...)
		extended = len(future)
	}

	if err := uc.results.StorePredictions(ctx, rows); err != nil {
		uc.metrics.RecordError("store_predictions")
		return nil, err
	}
	uc.metrics.RecordPredictions(string(p.Granularity), len(rows))
	uc.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	if uc.l != nil {
		uc.l.Info("forecast published",
			applogger.String("granularity", string(p.Granularity)),
			applogger.Int("rows", len(rows)),
			applogger.Int("extended", extended),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}

	return &ForecastResult{
		Granularity: p.Granularity,
		Generated:   len(rows),
		Extended:    extended,
		Rows:        rows,
	}, nil
}

// GetPredictions reads previously published rows back from the result store.
func (uc *ForecastUseCase) GetPredictions(ctx context.Context, g models.Granularity, from, to time.Time) ([]models.PredictionRow, error) {
	if !models.IsValidGranularity(g) {
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to")
	}
	return uc.results.GetPredictions(ctx, g, from, to)
}
